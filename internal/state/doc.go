// Package state records the last circular that was fully processed, so repeated
// runs short-circuit until a new circular is published.
//
// Only the run orchestrator writes state, once, after notification succeeded.
package state
