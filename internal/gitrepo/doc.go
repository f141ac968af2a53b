// Package gitrepo is the git plumbing collaborator of the workspace reconciler.
//
// RepositoryManager clones repositories with a separate metadata directory,
// opens working trees and metadata directories, lists remotes and writes
// configuration values. LibraryRepositoryManager implements it with go-git;
// CommandLineRepositoryManager shells out to the git binary through execshell.
package gitrepo
