// Package circular defines the core types shared across the circular discovery,
// resolution, archiving, and notification subsystems.
package circular
