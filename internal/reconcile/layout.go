package reconcile

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/manifest"
)

// RepositoryState classifies a declared repository against the filesystem.
type RepositoryState int

const (
	// StateUnstored means no valid metadata directory exists for the repository.
	StateUnstored RepositoryState = iota
	// StateStored means the metadata root holds a valid metadata directory for the repository.
	StateStored
)

const (
	storedLabelConstant   = "stored"
	unstoredLabelConstant = "unstored"
)

// String returns the label printed for the state.
func (state RepositoryState) String() string {
	if state == StateStored {
		return storedLabelConstant
	}
	return unstoredLabelConstant
}

// Layout holds the two roots every operation resolves repository paths against.
type Layout struct {
	WorktreeRoot       string
	GitDirectoriesRoot string
}

// LayoutFromSettings builds a Layout from manifest settings.
func LayoutFromSettings(settings manifest.Settings) Layout {
	return Layout{WorktreeRoot: settings.WorktreeRoot, GitDirectoriesRoot: settings.GitDirectoriesRoot}
}

// WorktreePath returns worktree_root/<repositoryPath>.
func (workspace Layout) WorktreePath(repositoryPath string) string {
	return filepath.Join(workspace.WorktreeRoot, filepath.FromSlash(repositoryPath))
}

// MetadataDirectory returns git_dirs_root/<repositoryPath>.
func (workspace Layout) MetadataDirectory(repositoryPath string) string {
	return filepath.Join(workspace.GitDirectoriesRoot, filepath.FromSlash(repositoryPath))
}

// stateOf recomputes the state of a repository. Only context errors are returned; any other resolution
// failure means the repository is unstored.
func (engine *Engine) stateOf(executionContext context.Context, workspace Layout, repositoryPath string) (RepositoryState, error) {
	_, openError := engine.dependencies.Manager.OpenMetadataDirectory(executionContext, workspace.MetadataDirectory(repositoryPath))
	if openError == nil {
		return StateStored, nil
	}
	if isContextError(openError) {
		return StateUnstored, openError
	}
	if !errors.Is(openError, gitrepo.ErrNotARepository) {
		engine.logger.Debug(stateResolutionLogMessageConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath), zap.Error(openError))
	}
	return StateUnstored, nil
}
