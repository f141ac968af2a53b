// Package layout guards the split worktree/metadata directory structure.
//
// StructureValidator walks from a candidate path up to a boundary root and
// rejects any ancestor that is a file, a symbolic link, a git working tree or
// a git metadata directory. The package also recognizes metadata directories
// and "gitdir:" redirect files so discovery and reconciliation share one
// definition of what a repository looks like on disk.
package layout
