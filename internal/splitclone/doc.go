// Package splitclone materializes repositories in the split layout: the metadata directory lives under one
// root while the working tree lives under another, linked by core.worktree and a gitdir redirect file.
package splitclone
