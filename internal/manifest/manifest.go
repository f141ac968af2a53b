package manifest

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/temirov/gitsplit/internal/layout"
)

const (
	homeDirectoryPrefixConstant            = "~"
	parentSegmentConstant                  = ".."
	missingRootErrorTemplateConstant       = "%w: %s is not set"
	relativeRootErrorTemplateConstant      = "%w: %s %q must be an absolute path"
	overlappingRootsErrorTemplateConstant  = "%w: worktree_root %s and git_dirs_root %s must not contain each other"
	homeExpansionErrorTemplateConstant     = "%w: expand %s: %v"
	invalidPathErrorTemplateConstant       = "%w: %q"
	blankURLErrorTemplateConstant          = "%w: %s"
	conflictingRecordErrorTemplateConstant = "%w: repository %s is declared with %s and %s"
	duplicatePathErrorTemplateConstant     = "%w: %s"
	corruptRecordErrorTemplateConstant     = "%w: %w"
	worktreeRootKeyConstant                = "worktree_root"
	gitDirectoriesRootKeyConstant          = "git_dirs_root"
)

var (
	// ErrManifestNotFound indicates the backing resource of a manifest does not exist.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrManifestCorrupt indicates a manifest lacks required fields or cannot be parsed.
	ErrManifestCorrupt = errors.New("manifest corrupt")
	// ErrDuplicatePath indicates a repository path is already declared.
	ErrDuplicatePath = errors.New("repository path already declared")
	// ErrMissingURL indicates a repository record without a remote URL.
	ErrMissingURL = errors.New("repository url is required")
	// ErrInvalidPath indicates a repository path is empty, absolute, or escapes its root.
	ErrInvalidPath = errors.New("invalid repository path")
)

// Settings holds the two roots of the split layout.
type Settings struct {
	WorktreeRoot       string
	GitDirectoriesRoot string
}

// RepositoryRecord declares one repository by relative path and remote URL.
type RepositoryRecord struct {
	Path string
	URL  string
}

// Manifest is the declared set of repositories, ordered by path.
// Manifest values are immutable; mutating operations return a new value.
type Manifest struct {
	Settings Settings
	records  []RepositoryRecord
}

// NewManifest constructs an empty manifest after validating its roots.
func NewManifest(settings Settings) (Manifest, error) {
	return FromRecords(settings, nil)
}

// FromRecords validates settings and records and returns them as a manifest. Identical duplicate
// records collapse into one; duplicates with different URLs are a corruption.
func FromRecords(settings Settings, records []RepositoryRecord) (Manifest, error) {
	normalizedSettings, settingsError := NormalizeSettings(settings)
	if settingsError != nil {
		return Manifest{}, settingsError
	}

	recordsByPath := make(map[string]RepositoryRecord, len(records))
	for _, record := range records {
		normalizedRecord, recordError := normalizeRecord(record)
		if recordError != nil {
			return Manifest{}, fmt.Errorf(corruptRecordErrorTemplateConstant, ErrManifestCorrupt, recordError)
		}
		existing, duplicate := recordsByPath[normalizedRecord.Path]
		if duplicate && existing.URL != normalizedRecord.URL {
			return Manifest{}, fmt.Errorf(conflictingRecordErrorTemplateConstant, ErrManifestCorrupt, normalizedRecord.Path, existing.URL, normalizedRecord.URL)
		}
		recordsByPath[normalizedRecord.Path] = normalizedRecord
	}

	orderedRecords := make([]RepositoryRecord, 0, len(recordsByPath))
	for _, record := range recordsByPath {
		orderedRecords = append(orderedRecords, record)
	}
	sortRecords(orderedRecords)
	return Manifest{Settings: normalizedSettings, records: orderedRecords}, nil
}

// Records returns a copy of the declared repositories ordered by path.
func (manifest Manifest) Records() []RepositoryRecord {
	return slices.Clone(manifest.records)
}

// Len reports the number of declared repositories.
func (manifest Manifest) Len() int {
	return len(manifest.records)
}

// Lookup returns the record declared for repositoryPath.
func (manifest Manifest) Lookup(repositoryPath string) (RepositoryRecord, bool) {
	normalizedPath, pathError := NormalizeRepositoryPath(repositoryPath)
	if pathError != nil {
		return RepositoryRecord{}, false
	}
	index, found := manifest.search(normalizedPath)
	if !found {
		return RepositoryRecord{}, false
	}
	return manifest.records[index], true
}

// Contains reports whether repositoryPath is declared.
func (manifest Manifest) Contains(repositoryPath string) bool {
	_, found := manifest.Lookup(repositoryPath)
	return found
}

// AddRepository returns a manifest that also declares record. It fails with ErrDuplicatePath when the
// path is already declared.
func (manifest Manifest) AddRepository(record RepositoryRecord) (Manifest, error) {
	normalizedRecord, recordError := normalizeRecord(record)
	if recordError != nil {
		return Manifest{}, recordError
	}
	index, found := manifest.search(normalizedRecord.Path)
	if found {
		return Manifest{}, fmt.Errorf(duplicatePathErrorTemplateConstant, ErrDuplicatePath, normalizedRecord.Path)
	}
	return manifest.withRecordAt(index, normalizedRecord, false), nil
}

// ReplaceRepository returns a manifest in which the record for record.Path is record, inserting it when
// the path is not yet declared.
func (manifest Manifest) ReplaceRepository(record RepositoryRecord) (Manifest, error) {
	normalizedRecord, recordError := normalizeRecord(record)
	if recordError != nil {
		return Manifest{}, recordError
	}
	index, found := manifest.search(normalizedRecord.Path)
	return manifest.withRecordAt(index, normalizedRecord, found), nil
}

// Validate checks the roots and every record of the manifest.
func (manifest Manifest) Validate() error {
	_, validationError := FromRecords(manifest.Settings, manifest.records)
	return validationError
}

func (manifest Manifest) search(repositoryPath string) (int, bool) {
	return slices.BinarySearchFunc(manifest.records, repositoryPath, func(record RepositoryRecord, target string) int {
		return strings.Compare(record.Path, target)
	})
}

func (manifest Manifest) withRecordAt(index int, record RepositoryRecord, replace bool) Manifest {
	updatedRecords := make([]RepositoryRecord, 0, len(manifest.records)+1)
	updatedRecords = append(updatedRecords, manifest.records[:index]...)
	updatedRecords = append(updatedRecords, record)
	remainderStart := index
	if replace {
		remainderStart++
	}
	updatedRecords = append(updatedRecords, manifest.records[remainderStart:]...)
	return Manifest{Settings: manifest.Settings, records: updatedRecords}
}

// NormalizeSettings expands and validates both roots. Roots must be absolute after home expansion and
// neither may contain the other.
func NormalizeSettings(settings Settings) (Settings, error) {
	worktreeRoot, worktreeError := normalizeRoot(worktreeRootKeyConstant, settings.WorktreeRoot)
	if worktreeError != nil {
		return Settings{}, worktreeError
	}
	gitDirectoriesRoot, gitDirectoriesError := normalizeRoot(gitDirectoriesRootKeyConstant, settings.GitDirectoriesRoot)
	if gitDirectoriesError != nil {
		return Settings{}, gitDirectoriesError
	}
	if layout.Contains(worktreeRoot, gitDirectoriesRoot) || layout.Contains(gitDirectoriesRoot, worktreeRoot) {
		return Settings{}, fmt.Errorf(overlappingRootsErrorTemplateConstant, ErrManifestCorrupt, worktreeRoot, gitDirectoriesRoot)
	}
	return Settings{WorktreeRoot: worktreeRoot, GitDirectoriesRoot: gitDirectoriesRoot}, nil
}

// NormalizeRepositoryPath converts a repository path to its canonical slash-separated relative form.
func NormalizeRepositoryPath(repositoryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	slashedPath := strings.ReplaceAll(filepath.ToSlash(trimmedPath), `\`, "/")
	if len(slashedPath) == 0 || strings.HasPrefix(slashedPath, "/") || filepath.IsAbs(trimmedPath) {
		return "", fmt.Errorf(invalidPathErrorTemplateConstant, ErrInvalidPath, repositoryPath)
	}
	cleanPath := path.Clean(slashedPath)
	if cleanPath == "." || cleanPath == parentSegmentConstant || strings.HasPrefix(cleanPath, parentSegmentConstant+"/") {
		return "", fmt.Errorf(invalidPathErrorTemplateConstant, ErrInvalidPath, repositoryPath)
	}
	return cleanPath, nil
}

// ExpandHomeDirectory replaces a leading ~ with the current user's home directory.
func ExpandHomeDirectory(rawPath string) (string, error) {
	if rawPath != homeDirectoryPrefixConstant && !strings.HasPrefix(rawPath, homeDirectoryPrefixConstant+"/") {
		return rawPath, nil
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return "", homeError
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(rawPath, homeDirectoryPrefixConstant)), nil
}

func normalizeRoot(settingName string, rawRoot string) (string, error) {
	trimmedRoot := strings.TrimSpace(rawRoot)
	if len(trimmedRoot) == 0 {
		return "", fmt.Errorf(missingRootErrorTemplateConstant, ErrManifestCorrupt, settingName)
	}
	expandedRoot, expansionError := ExpandHomeDirectory(trimmedRoot)
	if expansionError != nil {
		return "", fmt.Errorf(homeExpansionErrorTemplateConstant, ErrManifestCorrupt, settingName, expansionError)
	}
	if !filepath.IsAbs(expandedRoot) {
		return "", fmt.Errorf(relativeRootErrorTemplateConstant, ErrManifestCorrupt, settingName, rawRoot)
	}
	return filepath.Clean(expandedRoot), nil
}

func normalizeRecord(record RepositoryRecord) (RepositoryRecord, error) {
	normalizedPath, pathError := NormalizeRepositoryPath(record.Path)
	if pathError != nil {
		return RepositoryRecord{}, pathError
	}
	trimmedURL := strings.TrimSpace(record.URL)
	if len(trimmedURL) == 0 {
		return RepositoryRecord{}, fmt.Errorf(blankURLErrorTemplateConstant, ErrMissingURL, normalizedPath)
	}
	return RepositoryRecord{Path: normalizedPath, URL: trimmedURL}, nil
}

func sortRecords(records []RepositoryRecord) {
	slices.SortFunc(records, func(first RepositoryRecord, second RepositoryRecord) int {
		return strings.Compare(first.Path, second.Path)
	})
}
