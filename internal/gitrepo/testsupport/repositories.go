// Package testsupport provides git fixtures shared by package tests.
package testsupport

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

const (
	readmeFileNameConstant       = "README.md"
	readmeContentConstant        = "# fixture\n"
	commitMessageConstant        = "initial commit"
	authorNameConstant           = "Fixture Author"
	authorEmailConstant          = "fixture@example.com"
	fixtureFilePermissions       = 0o644
	fixtureDirectoryPermissions  = 0o755
	gitBinaryNameConstant        = "git"
	gitBinaryMissingSkipConstant = "git binary not available"
)

// RequireGitBinary skips the test when the git binary cannot be found.
// go-git's local file transport delegates to git-upload-pack.
func RequireGitBinary(testInstance testing.TB) {
	testInstance.Helper()
	if _, lookupError := exec.LookPath(gitBinaryNameConstant); lookupError != nil {
		testInstance.Skip(gitBinaryMissingSkipConstant)
	}
}

// CreateSourceRepository initializes a repository with one commit in directory and returns its path.
func CreateSourceRepository(testInstance testing.TB, directory string) string {
	testInstance.Helper()

	require.NoError(testInstance, os.MkdirAll(directory, fixtureDirectoryPermissions))
	repository, initError := git.PlainInit(directory, false)
	require.NoError(testInstance, initError)

	require.NoError(testInstance, os.WriteFile(filepath.Join(directory, readmeFileNameConstant), []byte(readmeContentConstant), fixtureFilePermissions))
	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)
	_, addError := worktree.Add(readmeFileNameConstant)
	require.NoError(testInstance, addError)
	_, commitError := worktree.Commit(commitMessageConstant, &git.CommitOptions{
		Author: &object.Signature{Name: authorNameConstant, Email: authorEmailConstant, When: time.Now()},
	})
	require.NoError(testInstance, commitError)

	return directory
}

// CreateWorkingTree initializes a standard repository (with an inline .git directory) at directory and
// registers an origin remote when originURL is not empty.
func CreateWorkingTree(testInstance testing.TB, directory string, originURL string) {
	testInstance.Helper()

	require.NoError(testInstance, os.MkdirAll(directory, fixtureDirectoryPermissions))
	repository, initError := git.PlainInit(directory, false)
	require.NoError(testInstance, initError)
	if len(originURL) == 0 {
		return
	}
	_, remoteError := repository.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{originURL}})
	require.NoError(testInstance, remoteError)
}
