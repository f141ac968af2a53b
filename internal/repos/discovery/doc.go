// Package discovery walks a worktree root and reports the git working trees beneath it, whether their
// metadata lives inline or behind a .git redirect file.
package discovery
