// The main package for the circularwatch executable.
package main

import (
	"github.com/JakeFAU/circular-watch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
