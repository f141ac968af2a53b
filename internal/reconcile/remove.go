package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/layout"
	"github.com/temirov/gitsplit/internal/repos/discovery"
)

const (
	removedLineTemplateConstant         = "%s %s\n"
	plannedRemovalLineTemplateConstant  = "%s %s: %s\n"
	skippedLineTemplateConstant         = "%s %s: %s\n"
	removeFailedLineTemplateConstant    = "%s %s: %v\n"
	removedLabelConstant                = "removed"
	wouldRemoveLabelConstant            = "would remove"
	skippedLabelConstant                = "skipped"
	containsDeclaredReasonTemplate      = "contains declared repository %s"
	metadataKeptLogMessageConstant      = "leaving metadata directory in place"
	metadataOutsideRootReasonConstant   = "outside git_dirs_root"
	metadataDeclaredReasonTemplate      = "overlaps metadata of declared repository %s"
	removeWorktreeErrorTemplateConstant = "remove working tree %s: %w"
	removeMetadataErrorTemplateConstant = "remove metadata directory %s: %w"
	logFieldReasonConstant              = "reason"
)

// RemoveOptions controls Remove.
type RemoveOptions struct {
	DryRun bool
}

// Remove deletes repositories that are present on disk but not declared. A declared repository is never
// touched: candidates containing a declared path are skipped, and a metadata directory is deleted only
// when it lies inside the removed working tree or under git_dirs_root without overlapping declared
// metadata.
func (engine *Engine) Remove(executionContext context.Context, options RemoveOptions) (BatchReport, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	loaded, workspace, loadError := engine.loadManifest(executionContext)
	if loadError != nil {
		return BatchReport{}, loadError
	}
	discovered, discoveryError := engine.discover(executionContext, workspace)
	if discoveryError != nil {
		return BatchReport{}, discoveryError
	}

	declaredPaths := make([]string, 0, loaded.Len())
	for _, record := range loaded.Records() {
		declaredPaths = append(declaredPaths, record.Path)
	}

	var report BatchReport
	for _, repository := range discovered {
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}
		if loaded.Contains(repository.Path) {
			continue
		}
		if declaredPath, overlaps := overlappingPath(repository.Path, declaredPaths, false); overlaps {
			reason := fmt.Sprintf(containsDeclaredReasonTemplate, declaredPath)
			report.Skipped = append(report.Skipped, repository.Path)
			engine.printf(skippedLineTemplateConstant, engine.dependencies.Renderer.Unstored(skippedLabelConstant), repository.Path, reason)
			continue
		}

		targets := engine.removalTargets(workspace, repository, declaredPaths)
		if options.DryRun {
			engine.printf(plannedRemovalLineTemplateConstant, engine.dependencies.Renderer.Unstored(wouldRemoveLabelConstant), repository.Path, strings.Join(targets, ", "))
			report.Completed = append(report.Completed, repository.Path)
			continue
		}

		if removeError := engine.removeTargets(targets); removeError != nil {
			engine.printf(removeFailedLineTemplateConstant, engine.dependencies.Renderer.Failure(failedLabelConstant), repository.Path, removeError)
			report.fail(OperationRemove, repository.Path, removeError)
			continue
		}
		report.Completed = append(report.Completed, repository.Path)
		engine.printf(removedLineTemplateConstant, engine.dependencies.Renderer.Stored(removedLabelConstant), repository.Path)
	}
	return report, report.Err()
}

// removalTargets returns the working tree followed by the metadata directory when it may be deleted.
func (engine *Engine) removalTargets(workspace Layout, repository discovery.DiscoveredRepository, declaredPaths []string) []string {
	worktreePath := workspace.WorktreePath(repository.Path)
	targets := []string{worktreePath}

	metadataDirectory := filepath.Clean(repository.MetadataDirectory)
	if len(repository.MetadataDirectory) == 0 || layout.Contains(worktreePath, metadataDirectory) {
		return targets
	}

	metadataFields := []zap.Field{
		zap.String(logFieldRepositoryPathConstant, repository.Path),
		zap.String(logFieldMetadataDirectoryConstant, metadataDirectory),
	}
	relativeMetadataPath, relativeError := filepath.Rel(workspace.GitDirectoriesRoot, metadataDirectory)
	if relativeError != nil || !layoutContains(workspace.GitDirectoriesRoot, metadataDirectory) {
		engine.logger.Warn(metadataKeptLogMessageConstant, append(metadataFields, zap.String(logFieldReasonConstant, metadataOutsideRootReasonConstant))...)
		return targets
	}
	if declaredPath, overlaps := overlappingPath(filepath.ToSlash(relativeMetadataPath), declaredPaths, true); overlaps {
		engine.logger.Warn(metadataKeptLogMessageConstant, append(metadataFields, zap.String(logFieldReasonConstant, fmt.Sprintf(metadataDeclaredReasonTemplate, declaredPath)))...)
		return targets
	}
	return append(targets, metadataDirectory)
}

func (engine *Engine) removeTargets(targets []string) error {
	worktreePath := targets[0]
	if removeError := engine.dependencies.FileSystem.RemoveAll(worktreePath); removeError != nil {
		return fmt.Errorf(removeWorktreeErrorTemplateConstant, worktreePath, removeError)
	}
	for _, metadataDirectory := range targets[1:] {
		if removeError := engine.dependencies.FileSystem.RemoveAll(metadataDirectory); removeError != nil {
			return fmt.Errorf(removeMetadataErrorTemplateConstant, metadataDirectory, removeError)
		}
	}
	return nil
}

// layoutContains reports whether candidate lies strictly beneath root.
func layoutContains(root string, candidate string) bool {
	return filepath.Clean(root) != filepath.Clean(candidate) && layout.Contains(root, candidate)
}

// overlappingPath finds a declared path equal to or beneath candidate. With bothDirections set it also
// matches declared paths that are ancestors of candidate.
func overlappingPath(candidate string, declaredPaths []string, bothDirections bool) (string, bool) {
	for _, declaredPath := range declaredPaths {
		if isSameOrBeneath(declaredPath, candidate) {
			return declaredPath, true
		}
		if bothDirections && isSameOrBeneath(candidate, declaredPath) {
			return declaredPath, true
		}
	}
	return "", false
}

func isSameOrBeneath(candidate string, ancestor string) bool {
	return candidate == ancestor || strings.HasPrefix(candidate, ancestor+"/")
}
