package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/repos/discovery"
)

const (
	addedLineTemplateConstant     = "%s %s %s\n"
	conflictLineTemplateConstant  = "%s %s: declared %s, found %s (keeping declared)\n"
	addedLabelConstant            = "added"
	conflictLabelConstant         = "conflict"
	missingRootLogMessageConstant = "worktree root does not exist; nothing discovered"
)

// UpdateConflict is a discovered repository whose origin differs from its declared URL.
type UpdateConflict struct {
	Path          string
	DeclaredURL   string
	DiscoveredURL string
}

// UpdateReport summarizes Update.
type UpdateReport struct {
	Added     []manifest.RepositoryRecord
	Conflicts []UpdateConflict
	Unchanged int
}

// Update rewrites the manifest as the union of declared and discovered repositories. Declared entries are
// never dropped, and on a URL conflict the declared URL is kept and the conflict reported.
func (engine *Engine) Update(executionContext context.Context) (UpdateReport, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	loaded, workspace, loadError := engine.loadManifest(executionContext)
	if loadError != nil {
		return UpdateReport{}, loadError
	}
	discovered, discoveryError := engine.discover(executionContext, workspace)
	if discoveryError != nil {
		return UpdateReport{}, discoveryError
	}

	var report UpdateReport
	updated := loaded
	for _, repository := range discovered {
		declared, isDeclared := loaded.Lookup(repository.Path)
		if isDeclared {
			if gitrepo.EquivalentRemoteURLs(declared.URL, repository.OriginURL) {
				report.Unchanged++
				continue
			}
			report.Conflicts = append(report.Conflicts, UpdateConflict{Path: repository.Path, DeclaredURL: declared.URL, DiscoveredURL: repository.OriginURL})
			engine.printf(conflictLineTemplateConstant, engine.dependencies.Renderer.Unstored(conflictLabelConstant), repository.Path, declared.URL, repository.OriginURL)
			continue
		}

		record := manifest.RepositoryRecord{Path: repository.Path, URL: repository.OriginURL}
		var addError error
		updated, addError = updated.AddRepository(record)
		if addError != nil {
			return report, newRepositoryError(OperationUpdate, repository.Path, addError)
		}
		report.Added = append(report.Added, record)
		engine.printf(addedLineTemplateConstant, engine.dependencies.Renderer.Stored(addedLabelConstant), record.Path, record.URL)
	}

	if len(report.Added) == 0 {
		return report, nil
	}
	if saveError := engine.dependencies.Store.Save(executionContext, updated); saveError != nil {
		return report, saveError
	}
	return report, nil
}

// discover lists the working trees under worktree_root. A missing root discovers nothing.
func (engine *Engine) discover(executionContext context.Context, workspace Layout) ([]discovery.DiscoveredRepository, error) {
	discovered, discoveryError := engine.dependencies.Discoverer.CollectRepositories(executionContext, workspace.WorktreeRoot)
	if errors.Is(discoveryError, discovery.ErrRootNotDirectory) {
		engine.logger.Info(missingRootLogMessageConstant, zap.String(logFieldWorktreePathConstant, workspace.WorktreeRoot))
		return nil, nil
	}
	return discovered, discoveryError
}
