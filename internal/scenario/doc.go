// Package scenario defines the declarative model for Global NDR Plus batch
// runs: the ecoshard registry, biophysical tables, and the scenario blocks
// that reference them. It loads the model from .hcl files and resolves the
// order in which scenarios should be launched.
package scenario
