// Package ui provides helpers for formatting human-readable console output.
//
// ConsoleCommandEventLogger turns git process events into concise log lines,
// and StatusStyler colours stored and unstored repository labels when output
// goes to a terminal.
package ui
