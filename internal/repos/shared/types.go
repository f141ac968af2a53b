package shared

import (
	"io/fs"
)

const (
	// OriginRemoteNameConstant identifies the remote whose URL is recorded for a repository.
	OriginRemoteNameConstant = "origin"
	// GitMarkerNameConstant is the entry that marks a directory as a git working tree.
	GitMarkerNameConstant = ".git"
	// DirectoryPermissionsConstant is applied to directories created for the split layout.
	DirectoryPermissionsConstant = fs.FileMode(0o755)
)

// FileSystem exposes filesystem operations required by workspace services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Lstat(path string) (fs.FileInfo, error)
	Rename(oldPath string, newPath string) error
	Abs(path string) (string, error)
	Mkdir(path string, permissions fs.FileMode) error
	MkdirAll(path string, permissions fs.FileMode) error
	RemoveAll(path string) error
	ReadDir(path string) ([]fs.DirEntry, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
}
