package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/repos/shared"
	"github.com/temirov/gitsplit/internal/splitclone"
)

const (
	fixedLineTemplateConstant          = "%s %s\n"
	fixFailedLineTemplateConstant      = "%s %s: %v\n"
	fixedLabelConstant                 = "fixed"
	failedLabelConstant                = "failed"
	invalidLayoutErrorTemplateConstant = "%w: %w"
	createParentsErrorTemplateConstant = "create parent directories of %s: %w"
	fixStartedLogMessageConstant       = "fixing unstored repository"
	fixFailedLogMessageConstant        = "fix failed; continuing with next repository"
)

// Fix materializes every declared repository that is unstored. A directory-safety violation aborts the
// batch with ErrInvalidLayout; clone failures are recorded per repository and the batch continues.
func (engine *Engine) Fix(executionContext context.Context) (BatchReport, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	loaded, workspace, loadError := engine.loadManifest(executionContext)
	if loadError != nil {
		return BatchReport{}, loadError
	}

	var report BatchReport
	for _, record := range loaded.Records() {
		state, stateError := engine.stateOf(executionContext, workspace, record.Path)
		if stateError != nil {
			return report, errors.Join(report.Err(), stateError)
		}
		if state == StateStored {
			report.Skipped = append(report.Skipped, record.Path)
			continue
		}

		worktreePath := workspace.WorktreePath(record.Path)
		metadataDirectory := workspace.MetadataDirectory(record.Path)
		engine.logger.Info(fixStartedLogMessageConstant,
			zap.String(logFieldRepositoryPathConstant, record.Path),
			zap.String(logFieldWorktreePathConstant, worktreePath),
			zap.String(logFieldMetadataDirectoryConstant, metadataDirectory),
		)

		if layoutError := engine.validateTargets(workspace, record.Path); layoutError != nil {
			fatalError := newRepositoryError(OperationFix, record.Path, layoutError)
			engine.printf(fixFailedLineTemplateConstant, engine.dependencies.Renderer.Failure(failedLabelConstant), record.Path, layoutError)
			return report, errors.Join(report.Err(), fatalError)
		}

		if materializeError := engine.materialize(executionContext, record.URL, worktreePath, metadataDirectory); materializeError != nil {
			engine.logger.Warn(fixFailedLogMessageConstant, zap.String(logFieldRepositoryPathConstant, record.Path), zap.Error(materializeError))
			engine.printf(fixFailedLineTemplateConstant, engine.dependencies.Renderer.Failure(failedLabelConstant), record.Path, materializeError)
			report.fail(OperationFix, record.Path, materializeError)
			if executionContext.Err() != nil {
				return report, report.Err()
			}
			continue
		}

		report.Completed = append(report.Completed, record.Path)
		engine.printf(fixedLineTemplateConstant, engine.dependencies.Renderer.Stored(fixedLabelConstant), record.Path)
	}
	return report, report.Err()
}

// validateTargets checks the metadata chain against git_dirs_root and the working tree chain against
// worktree_root. Violations wrap ErrInvalidLayout.
func (engine *Engine) validateTargets(workspace Layout, repositoryPath string) error {
	if metadataError := engine.dependencies.Validator.Inspect(workspace.MetadataDirectory(repositoryPath), workspace.GitDirectoriesRoot); metadataError != nil {
		return fmt.Errorf(invalidLayoutErrorTemplateConstant, ErrInvalidLayout, metadataError)
	}
	if worktreeError := engine.dependencies.Validator.Inspect(workspace.WorktreePath(repositoryPath), workspace.WorktreeRoot); worktreeError != nil {
		return fmt.Errorf(invalidLayoutErrorTemplateConstant, ErrInvalidLayout, worktreeError)
	}
	return nil
}

// materialize creates the parent directories of both targets and clones into them.
func (engine *Engine) materialize(executionContext context.Context, remoteURL string, worktreePath string, metadataDirectory string) error {
	for _, target := range []string{metadataDirectory, worktreePath} {
		if mkdirError := engine.dependencies.FileSystem.MkdirAll(filepath.Dir(target), shared.DirectoryPermissionsConstant); mkdirError != nil {
			return fmt.Errorf(createParentsErrorTemplateConstant, target, mkdirError)
		}
	}
	return engine.dependencies.Materializer.Materialize(executionContext, splitclone.MaterializeRequest{
		RemoteURL:         remoteURL,
		WorktreePath:      worktreePath,
		MetadataDirectory: metadataDirectory,
	})
}

func (engine *Engine) pathExists(path string) (bool, error) {
	_, statError := engine.dependencies.FileSystem.Lstat(path)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, fs.ErrNotExist) {
		return false, nil
	}
	return false, statError
}
