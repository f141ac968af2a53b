// Package cli builds the gitsplit command-line interface: the Cobra command
// tree, layered configuration and zap logging, and the wiring that turns the
// configured manifest and git backend into a reconciliation engine.
package cli
