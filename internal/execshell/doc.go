// Package execshell runs external tools, currently git, in a testable manner.
//
// ShellExecutor wraps a CommandRunner with zap logging and lifecycle
// notifications for a CommandEventObserver. OSCommandRunner is the default
// runner backed by os/exec; git children never inherit GIT_DIR and friends.
package execshell
