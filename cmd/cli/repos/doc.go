// Package repos provides the cobra commands that reconcile a repository
// manifest with the split worktree and metadata layout on disk.
package repos
