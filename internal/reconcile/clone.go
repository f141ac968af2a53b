package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/gitsplit/internal/manifest"
)

const (
	alreadyExistsErrorTemplateConstant = "%w: %s is declared with %s"
	collisionErrorTemplateConstant     = "%w: %s"
	persistErrorTemplateConstant       = "cloned but could not update manifest: %w"
	clonedLineTemplateConstant         = "%s %s %s\n"
	clonedLabelConstant                = "cloned"
)

// CloneNew clones a repository that is not yet declared and records it in the manifest. A declared path
// fails with ErrAlreadyExists before anything on disk changes; an existing target fails with
// ErrTargetCollision.
func (engine *Engine) CloneNew(executionContext context.Context, repositoryPath string, remoteURL string) error {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	loaded, workspace, loadError := engine.loadManifest(executionContext)
	if loadError != nil {
		return loadError
	}

	updated, addError := loaded.AddRepository(manifest.RepositoryRecord{Path: repositoryPath, URL: remoteURL})
	if addError != nil {
		if errors.Is(addError, manifest.ErrDuplicatePath) {
			existing, _ := loaded.Lookup(repositoryPath)
			return newRepositoryError(OperationClone, existing.Path, fmt.Errorf(alreadyExistsErrorTemplateConstant, ErrAlreadyExists, existing.Path, existing.URL))
		}
		return newRepositoryError(OperationClone, repositoryPath, addError)
	}
	record, _ := updated.Lookup(repositoryPath)

	if layoutError := engine.validateTargets(workspace, record.Path); layoutError != nil {
		return newRepositoryError(OperationClone, record.Path, layoutError)
	}

	for _, target := range []string{workspace.WorktreePath(record.Path), workspace.MetadataDirectory(record.Path)} {
		exists, statError := engine.pathExists(target)
		if statError != nil {
			return newRepositoryError(OperationClone, record.Path, statError)
		}
		if exists {
			return newRepositoryError(OperationClone, record.Path, fmt.Errorf(collisionErrorTemplateConstant, ErrTargetCollision, target))
		}
	}

	if materializeError := engine.materialize(executionContext, record.URL, workspace.WorktreePath(record.Path), workspace.MetadataDirectory(record.Path)); materializeError != nil {
		return newRepositoryError(OperationClone, record.Path, materializeError)
	}

	if saveError := engine.dependencies.Store.Save(executionContext, updated); saveError != nil {
		return newRepositoryError(OperationClone, record.Path, fmt.Errorf(persistErrorTemplateConstant, saveError))
	}
	engine.printf(clonedLineTemplateConstant, engine.dependencies.Renderer.Stored(clonedLabelConstant), record.Path, record.URL)
	return nil
}
