// Package app wires the batch launcher together: it owns the run
// configuration, the logger, the optional status server, and the Run
// lifecycle that takes a loaded scenario set from workspace lock to
// failure summary.
package app
