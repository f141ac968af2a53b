package reconcile

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/temirov/gitsplit/internal/manifest"
)

const (
	listLineTemplateConstant        = "%s %s\n"
	listVerboseLineTemplateConstant = "%s %s %s\n"
	checkLineTemplateConstant       = "%s %s\n"
	checkSummaryTemplateConstant    = "%d of %d repositories unstored\n"
	notStoredLabelConstant          = "not stored"
)

// ListOptions controls List output.
type ListOptions struct {
	Verbose bool
	Filter  string
}

// CheckEntry is the state of one declared repository.
type CheckEntry struct {
	Path              string
	URL               string
	State             RepositoryState
	MetadataDirectory string
}

// CheckReport holds the state of every declared repository, ordered by path.
type CheckReport struct {
	Entries []CheckEntry
}

// Unstored returns the paths of repositories that are not materialized.
func (report CheckReport) Unstored() []string {
	var unstoredPaths []string
	for _, entry := range report.Entries {
		if entry.State == StateUnstored {
			unstoredPaths = append(unstoredPaths, entry.Path)
		}
	}
	return unstoredPaths
}

// List prints the declared repositories. Verbose output adds the metadata directory each working tree
// resolves to, or "not stored" when resolution fails. A non-empty filter keeps fuzzy matches of the path.
func (engine *Engine) List(executionContext context.Context, options ListOptions) error {
	loaded, workspace, loadError := engine.loadManifest(executionContext)
	if loadError != nil {
		return loadError
	}

	for _, record := range filterRecords(loaded.Records(), options.Filter) {
		if !options.Verbose {
			engine.printf(listLineTemplateConstant, record.Path, record.URL)
			continue
		}
		metadataDirectory, resolveError := engine.resolveWorktreeMetadata(executionContext, workspace, record.Path)
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if resolveError != nil {
			engine.printf(listVerboseLineTemplateConstant, record.Path, record.URL, engine.dependencies.Renderer.Unstored(notStoredLabelConstant))
			continue
		}
		engine.printf(listVerboseLineTemplateConstant, record.Path, record.URL, engine.dependencies.Renderer.Detail(metadataDirectory))
	}
	return nil
}

// Check classifies every declared repository as stored or unstored. It never modifies the workspace.
func (engine *Engine) Check(executionContext context.Context) (CheckReport, error) {
	loaded, workspace, loadError := engine.loadManifest(executionContext)
	if loadError != nil {
		return CheckReport{}, loadError
	}

	report := CheckReport{Entries: make([]CheckEntry, 0, loaded.Len())}
	for _, record := range loaded.Records() {
		state, stateError := engine.stateOf(executionContext, workspace, record.Path)
		if stateError != nil {
			return report, stateError
		}
		report.Entries = append(report.Entries, CheckEntry{
			Path:              record.Path,
			URL:               record.URL,
			State:             state,
			MetadataDirectory: workspace.MetadataDirectory(record.Path),
		})
		engine.printf(checkLineTemplateConstant, record.Path, engine.renderState(state))
	}
	engine.printf(checkSummaryTemplateConstant, len(report.Unstored()), len(report.Entries))
	return report, nil
}

func (engine *Engine) renderState(state RepositoryState) string {
	if state == StateStored {
		return engine.dependencies.Renderer.Stored(state.String())
	}
	return engine.dependencies.Renderer.Unstored(state.String())
}

func (engine *Engine) resolveWorktreeMetadata(executionContext context.Context, workspace Layout, repositoryPath string) (string, error) {
	handle, openError := engine.dependencies.Manager.OpenRepository(executionContext, workspace.WorktreePath(repositoryPath))
	if openError != nil {
		return "", openError
	}
	return engine.dependencies.Manager.ResolveMetadataDirectory(executionContext, handle)
}

type recordSource []manifest.RepositoryRecord

func (source recordSource) String(index int) string { return source[index].Path }
func (source recordSource) Len() int                { return len(source) }

// filterRecords keeps records whose path fuzzily matches filter, preserving path order.
func filterRecords(records []manifest.RepositoryRecord, filter string) []manifest.RepositoryRecord {
	trimmedFilter := strings.TrimSpace(filter)
	if len(trimmedFilter) == 0 {
		return records
	}

	matches := fuzzy.FindFrom(trimmedFilter, recordSource(records))
	matchedIndexes := make([]int, 0, len(matches))
	for _, match := range matches {
		matchedIndexes = append(matchedIndexes, match.Index)
	}
	slices.Sort(matchedIndexes)

	filtered := make([]manifest.RepositoryRecord, 0, len(matchedIndexes))
	for _, index := range matchedIndexes {
		filtered = append(filtered, records[index])
	}
	return filtered
}

func isContextError(candidate error) bool {
	return errors.Is(candidate, context.Canceled) || errors.Is(candidate, context.DeadlineExceeded)
}
