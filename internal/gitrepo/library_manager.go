package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	libraryCloneErrorTemplateConstant         = "clone %s: %w"
	libraryOpenErrorTemplateConstant          = "open repository %s: %w"
	libraryConfigReadErrorTemplateConstant    = "read configuration of %s: %w"
	libraryConfigWriteErrorTemplateConstant   = "write configuration of %s: %w"
	libraryStorageUnavailableTemplateConstant = "repository %s is not backed by a filesystem storage"
)

type filesystemBackedStorage interface {
	Filesystem() billy.Filesystem
}

// LibraryRepositoryManager implements RepositoryManager with go-git.
type LibraryRepositoryManager struct{}

// NewLibraryRepositoryManager constructs the go-git backend.
func NewLibraryRepositoryManager() *LibraryRepositoryManager {
	return &LibraryRepositoryManager{}
}

// CloneWithSeparateMetadataDirectory clones remoteURL with its object storage under metadataDirectory and its
// checkout under workingDirectory.
func (manager *LibraryRepositoryManager) CloneWithSeparateMetadataDirectory(executionContext context.Context, remoteURL string, workingDirectory string, metadataDirectory string) (Handle, error) {
	authentication, authenticationError := authenticationForURL(remoteURL)
	if authenticationError != nil {
		return Handle{}, fmt.Errorf(libraryCloneErrorTemplateConstant, remoteURL, authenticationError)
	}

	storage := filesystem.NewStorage(osfs.New(metadataDirectory), cache.NewObjectLRUDefault())
	_, cloneError := git.CloneContext(executionContext, storage, osfs.New(workingDirectory), &git.CloneOptions{
		URL:  remoteURL,
		Auth: authentication,
	})
	if cloneError != nil {
		return Handle{}, fmt.Errorf(libraryCloneErrorTemplateConstant, remoteURL, cloneError)
	}

	return Handle{WorkingDirectory: workingDirectory, MetadataDirectory: metadataDirectory}, nil
}

// OpenRepository opens the working tree at workingDirectory, following a "gitdir:" redirect file when present.
func (manager *LibraryRepositoryManager) OpenRepository(executionContext context.Context, workingDirectory string) (Handle, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Handle{}, contextError
	}

	repository, openError := git.PlainOpenWithOptions(workingDirectory, &git.PlainOpenOptions{DetectDotGit: false})
	if openError != nil {
		return Handle{}, translateOpenError(workingDirectory, openError)
	}

	metadataDirectory, storageError := storageRoot(repository, workingDirectory)
	if storageError != nil {
		return Handle{}, storageError
	}
	return Handle{WorkingDirectory: workingDirectory, MetadataDirectory: metadataDirectory}, nil
}

// OpenMetadataDirectory opens a metadata directory directly and reports the working tree configured in core.worktree.
func (manager *LibraryRepositoryManager) OpenMetadataDirectory(executionContext context.Context, metadataDirectory string) (Handle, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Handle{}, contextError
	}

	repository, openError := openMetadataRepository(metadataDirectory)
	if openError != nil {
		return Handle{}, openError
	}

	configuration, configurationError := repository.Config()
	if configurationError != nil {
		return Handle{}, fmt.Errorf(libraryConfigReadErrorTemplateConstant, metadataDirectory, configurationError)
	}

	return Handle{
		WorkingDirectory:  resolveConfiguredWorktree(metadataDirectory, configuration.Core.Worktree),
		MetadataDirectory: metadataDirectory,
	}, nil
}

// ListRemotes returns the first URL of every configured remote keyed by remote name.
func (manager *LibraryRepositoryManager) ListRemotes(executionContext context.Context, handle Handle) (map[string]string, error) {
	repository, openError := manager.openHandle(executionContext, handle)
	if openError != nil {
		return nil, openError
	}

	configuration, configurationError := repository.Config()
	if configurationError != nil {
		return nil, fmt.Errorf(libraryConfigReadErrorTemplateConstant, describeHandle(handle), configurationError)
	}

	remotes := make(map[string]string, len(configuration.Remotes))
	for remoteName, remoteConfiguration := range configuration.Remotes {
		if remoteConfiguration == nil || len(remoteConfiguration.URLs) == 0 {
			continue
		}
		remotes[remoteName] = remoteConfiguration.URLs[0]
	}
	return remotes, nil
}

// SetConfigValue writes section.key = value into the repository configuration. Sections may carry a
// subsection after the first dot, as in "remote.origin".
func (manager *LibraryRepositoryManager) SetConfigValue(executionContext context.Context, handle Handle, section string, key string, value string) error {
	repository, openError := manager.openHandle(executionContext, handle)
	if openError != nil {
		return openError
	}

	configuration, configurationError := repository.Config()
	if configurationError != nil {
		return fmt.Errorf(libraryConfigReadErrorTemplateConstant, describeHandle(handle), configurationError)
	}

	sectionName, subsectionName, hasSubsection := strings.Cut(section, configurationKeySeparatorConstant)
	if hasSubsection {
		configuration.Raw.Section(sectionName).Subsection(subsectionName).SetOption(key, value)
	} else {
		configuration.Raw.Section(sectionName).SetOption(key, value)
	}
	if strings.EqualFold(section, CoreSectionConstant) && strings.EqualFold(key, WorktreeKeyConstant) {
		configuration.Core.Worktree = value
	}

	if writeError := repository.SetConfig(configuration); writeError != nil {
		return fmt.Errorf(libraryConfigWriteErrorTemplateConstant, describeHandle(handle), writeError)
	}
	return nil
}

// ResolveMetadataDirectory returns the absolute metadata directory backing the handle.
func (manager *LibraryRepositoryManager) ResolveMetadataDirectory(executionContext context.Context, handle Handle) (string, error) {
	repository, openError := manager.openHandle(executionContext, handle)
	if openError != nil {
		return "", openError
	}
	return storageRoot(repository, describeHandle(handle))
}

func (manager *LibraryRepositoryManager) openHandle(executionContext context.Context, handle Handle) (*git.Repository, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	if len(handle.MetadataDirectory) > 0 {
		return openMetadataRepository(handle.MetadataDirectory)
	}
	repository, openError := git.PlainOpenWithOptions(handle.WorkingDirectory, &git.PlainOpenOptions{DetectDotGit: false})
	if openError != nil {
		return nil, translateOpenError(handle.WorkingDirectory, openError)
	}
	return repository, nil
}

func openMetadataRepository(metadataDirectory string) (*git.Repository, error) {
	directoryInfo, statError := os.Stat(metadataDirectory)
	if statError != nil || !directoryInfo.IsDir() {
		return nil, notARepositoryError(metadataDirectory)
	}

	storage := filesystem.NewStorage(osfs.New(metadataDirectory), cache.NewObjectLRUDefault())
	repository, openError := git.Open(storage, nil)
	if openError != nil {
		return nil, translateOpenError(metadataDirectory, openError)
	}
	return repository, nil
}

func translateOpenError(path string, openError error) error {
	if errors.Is(openError, git.ErrRepositoryNotExists) {
		return notARepositoryError(path)
	}
	return fmt.Errorf(libraryOpenErrorTemplateConstant, path, openError)
}

func storageRoot(repository *git.Repository, description string) (string, error) {
	backedStorage, isFilesystemBacked := repository.Storer.(filesystemBackedStorage)
	if !isFilesystemBacked {
		return "", fmt.Errorf(libraryStorageUnavailableTemplateConstant, description)
	}
	return filepath.Abs(backedStorage.Filesystem().Root())
}

func resolveConfiguredWorktree(metadataDirectory string, configuredWorktree string) string {
	trimmedWorktree := strings.TrimSpace(configuredWorktree)
	if len(trimmedWorktree) == 0 {
		return ""
	}
	if filepath.IsAbs(trimmedWorktree) {
		return filepath.Clean(trimmedWorktree)
	}
	return filepath.Join(metadataDirectory, trimmedWorktree)
}

func describeHandle(handle Handle) string {
	if len(handle.MetadataDirectory) > 0 {
		return handle.MetadataDirectory
	}
	return handle.WorkingDirectory
}
