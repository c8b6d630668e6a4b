// Package launcher issues one containerized pipeline invocation per selected
// scenario. It owns the invocation template, the execution backends (spawn or
// print), and the batch loop with its failure semantics.
package launcher
