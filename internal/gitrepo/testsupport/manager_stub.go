package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitsplit/internal/gitrepo"
)

const (
	stubHeadContentConstant     = "ref: refs/heads/main\n"
	stubConfigFileNameConstant  = "config"
	stubHeadFileNameConstant    = "HEAD"
	stubObjectsDirectoryName    = "objects"
	stubReferencesDirectoryName = "refs"
	stubGitMarkerName           = ".git"
	stubGitDirPrefix            = "gitdir:"
	stubCheckoutFileName        = "README.md"
	stubCheckoutContent         = "checkout\n"
	stubOriginRemoteName        = "origin"
)

// ErrStubCloneFailed is returned for remotes registered through FailClone.
var ErrStubCloneFailed = errors.New("stub clone failed")

// RepositoryManagerStub is a filesystem-backed gitrepo.RepositoryManager. Clones write a minimal metadata
// directory (HEAD, objects, refs, config) and a checkout file; remotes and configuration live in memory
// keyed by metadata directory.
type RepositoryManagerStub struct {
	mutex              sync.Mutex
	remotesByMetadata  map[string]map[string]string
	configByMetadata   map[string]map[string]string
	cloneFailures      map[string]error
	partialOnFailure   map[string]bool
	CloneInvocations   []CloneInvocation
	ConfigInvocations  []ConfigInvocation
	BlockUntilCanceled map[string]bool
}

// CloneInvocation records one clone request.
type CloneInvocation struct {
	RemoteURL         string
	WorkingDirectory  string
	MetadataDirectory string
}

// ConfigInvocation records one configuration write.
type ConfigInvocation struct {
	MetadataDirectory string
	Key               string
	Value             string
}

// NewRepositoryManagerStub constructs an empty stub.
func NewRepositoryManagerStub() *RepositoryManagerStub {
	return &RepositoryManagerStub{
		remotesByMetadata:  make(map[string]map[string]string),
		configByMetadata:   make(map[string]map[string]string),
		cloneFailures:      make(map[string]error),
		partialOnFailure:   make(map[string]bool),
		BlockUntilCanceled: make(map[string]bool),
	}
}

// FailClone makes clones of remoteURL fail. When writePartialMetadata is set the metadata directory is
// created before the failure is reported.
func (stub *RepositoryManagerStub) FailClone(remoteURL string, writePartialMetadata bool) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.cloneFailures[remoteURL] = fmt.Errorf("%w: %s", ErrStubCloneFailed, remoteURL)
	stub.partialOnFailure[remoteURL] = writePartialMetadata
}

// SeedRepository creates a working tree linked to a separate metadata directory, as a finished split clone
// would, and records its origin remote.
func (stub *RepositoryManagerStub) SeedRepository(testInstance testing.TB, workingDirectory string, metadataDirectory string, originURL string) {
	testInstance.Helper()
	require.NoError(testInstance, writeMetadataDirectory(metadataDirectory))
	require.NoError(testInstance, os.MkdirAll(workingDirectory, 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(workingDirectory, stubGitMarkerName), []byte(stubGitDirPrefix+" "+metadataDirectory+"\n"), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(workingDirectory, stubCheckoutFileName), []byte(stubCheckoutContent), 0o644))
	stub.recordRepository(metadataDirectory, originURL)
	stub.mutex.Lock()
	stub.configByMetadata[filepath.Clean(metadataDirectory)]["core.worktree"] = workingDirectory
	stub.mutex.Unlock()
}

// SeedInlineRepository creates a working tree with an inline .git metadata directory.
func (stub *RepositoryManagerStub) SeedInlineRepository(testInstance testing.TB, workingDirectory string, originURL string) {
	testInstance.Helper()
	metadataDirectory := filepath.Join(workingDirectory, stubGitMarkerName)
	require.NoError(testInstance, writeMetadataDirectory(metadataDirectory))
	stub.recordRepository(metadataDirectory, originURL)
}

// ConfigValue returns a configuration value previously written for metadataDirectory.
func (stub *RepositoryManagerStub) ConfigValue(metadataDirectory string, key string) string {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.configByMetadata[filepath.Clean(metadataDirectory)][key]
}

// CloneWithSeparateMetadataDirectory implements gitrepo.RepositoryManager.
func (stub *RepositoryManagerStub) CloneWithSeparateMetadataDirectory(executionContext context.Context, remoteURL string, workingDirectory string, metadataDirectory string) (gitrepo.Handle, error) {
	stub.mutex.Lock()
	stub.CloneInvocations = append(stub.CloneInvocations, CloneInvocation{RemoteURL: remoteURL, WorkingDirectory: workingDirectory, MetadataDirectory: metadataDirectory})
	cloneFailure := stub.cloneFailures[remoteURL]
	writePartial := stub.partialOnFailure[remoteURL]
	blockUntilCanceled := stub.BlockUntilCanceled[remoteURL]
	stub.mutex.Unlock()

	if blockUntilCanceled {
		<-executionContext.Done()
		return gitrepo.Handle{}, executionContext.Err()
	}

	if cloneFailure != nil {
		if writePartial {
			if writeError := writeMetadataDirectory(metadataDirectory); writeError != nil {
				return gitrepo.Handle{}, writeError
			}
		}
		return gitrepo.Handle{}, cloneFailure
	}

	if writeError := writeMetadataDirectory(metadataDirectory); writeError != nil {
		return gitrepo.Handle{}, writeError
	}
	if mkdirError := os.MkdirAll(workingDirectory, 0o755); mkdirError != nil {
		return gitrepo.Handle{}, mkdirError
	}
	if writeError := os.WriteFile(filepath.Join(workingDirectory, stubGitMarkerName), []byte(stubGitDirPrefix+" "+metadataDirectory+"\n"), 0o644); writeError != nil {
		return gitrepo.Handle{}, writeError
	}
	if writeError := os.WriteFile(filepath.Join(workingDirectory, stubCheckoutFileName), []byte(stubCheckoutContent), 0o644); writeError != nil {
		return gitrepo.Handle{}, writeError
	}

	stub.recordRepository(metadataDirectory, remoteURL)
	return gitrepo.Handle{WorkingDirectory: workingDirectory, MetadataDirectory: metadataDirectory}, nil
}

// OpenRepository implements gitrepo.RepositoryManager.
func (stub *RepositoryManagerStub) OpenRepository(_ context.Context, workingDirectory string) (gitrepo.Handle, error) {
	markerPath := filepath.Join(workingDirectory, stubGitMarkerName)
	markerInfo, statError := os.Lstat(markerPath)
	if statError != nil {
		return gitrepo.Handle{}, fmt.Errorf("%w: %s", gitrepo.ErrNotARepository, workingDirectory)
	}

	metadataDirectory := markerPath
	if !markerInfo.IsDir() {
		content, readError := os.ReadFile(markerPath)
		if readError != nil {
			return gitrepo.Handle{}, readError
		}
		metadataDirectory = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(content)), stubGitDirPrefix))
		if !filepath.IsAbs(metadataDirectory) {
			metadataDirectory = filepath.Join(workingDirectory, metadataDirectory)
		}
	}

	if !isMetadataDirectory(metadataDirectory) {
		return gitrepo.Handle{}, fmt.Errorf("%w: %s", gitrepo.ErrNotARepository, workingDirectory)
	}
	return gitrepo.Handle{WorkingDirectory: workingDirectory, MetadataDirectory: filepath.Clean(metadataDirectory)}, nil
}

// OpenMetadataDirectory implements gitrepo.RepositoryManager.
func (stub *RepositoryManagerStub) OpenMetadataDirectory(_ context.Context, metadataDirectory string) (gitrepo.Handle, error) {
	if !isMetadataDirectory(metadataDirectory) {
		return gitrepo.Handle{}, fmt.Errorf("%w: %s", gitrepo.ErrNotARepository, metadataDirectory)
	}
	return gitrepo.Handle{
		WorkingDirectory:  stub.ConfigValue(metadataDirectory, "core.worktree"),
		MetadataDirectory: filepath.Clean(metadataDirectory),
	}, nil
}

// ListRemotes implements gitrepo.RepositoryManager.
func (stub *RepositoryManagerStub) ListRemotes(executionContext context.Context, handle gitrepo.Handle) (map[string]string, error) {
	metadataDirectory, resolveError := stub.ResolveMetadataDirectory(executionContext, handle)
	if resolveError != nil {
		return nil, resolveError
	}
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	remotes := make(map[string]string)
	for remoteName, remoteURL := range stub.remotesByMetadata[metadataDirectory] {
		remotes[remoteName] = remoteURL
	}
	return remotes, nil
}

// SetConfigValue implements gitrepo.RepositoryManager.
func (stub *RepositoryManagerStub) SetConfigValue(executionContext context.Context, handle gitrepo.Handle, section string, key string, value string) error {
	metadataDirectory, resolveError := stub.ResolveMetadataDirectory(executionContext, handle)
	if resolveError != nil {
		return resolveError
	}
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	configurationKey := section + "." + key
	stub.ConfigInvocations = append(stub.ConfigInvocations, ConfigInvocation{MetadataDirectory: metadataDirectory, Key: configurationKey, Value: value})
	if _, exists := stub.configByMetadata[metadataDirectory]; !exists {
		stub.configByMetadata[metadataDirectory] = make(map[string]string)
	}
	stub.configByMetadata[metadataDirectory][configurationKey] = value
	return nil
}

// ResolveMetadataDirectory implements gitrepo.RepositoryManager.
func (stub *RepositoryManagerStub) ResolveMetadataDirectory(executionContext context.Context, handle gitrepo.Handle) (string, error) {
	if len(handle.MetadataDirectory) > 0 {
		if !isMetadataDirectory(handle.MetadataDirectory) {
			return "", fmt.Errorf("%w: %s", gitrepo.ErrNotARepository, handle.MetadataDirectory)
		}
		return filepath.Clean(handle.MetadataDirectory), nil
	}
	openedHandle, openError := stub.OpenRepository(executionContext, handle.WorkingDirectory)
	if openError != nil {
		return "", openError
	}
	return openedHandle.MetadataDirectory, nil
}

func (stub *RepositoryManagerStub) recordRepository(metadataDirectory string, originURL string) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	cleanDirectory := filepath.Clean(metadataDirectory)
	stub.remotesByMetadata[cleanDirectory] = make(map[string]string)
	if len(originURL) > 0 {
		stub.remotesByMetadata[cleanDirectory][stubOriginRemoteName] = originURL
	}
	if _, exists := stub.configByMetadata[cleanDirectory]; !exists {
		stub.configByMetadata[cleanDirectory] = make(map[string]string)
	}
}

func writeMetadataDirectory(metadataDirectory string) error {
	for _, directory := range []string{stubObjectsDirectoryName, stubReferencesDirectoryName} {
		if mkdirError := os.MkdirAll(filepath.Join(metadataDirectory, directory), 0o755); mkdirError != nil {
			return mkdirError
		}
	}
	if writeError := os.WriteFile(filepath.Join(metadataDirectory, stubHeadFileNameConstant), []byte(stubHeadContentConstant), 0o644); writeError != nil {
		return writeError
	}
	return os.WriteFile(filepath.Join(metadataDirectory, stubConfigFileNameConstant), []byte("[core]\n"), 0o644)
}

func isMetadataDirectory(metadataDirectory string) bool {
	headInfo, headError := os.Stat(filepath.Join(metadataDirectory, stubHeadFileNameConstant))
	if headError != nil || !headInfo.Mode().IsRegular() {
		return false
	}
	objectsInfo, objectsError := os.Stat(filepath.Join(metadataDirectory, stubObjectsDirectoryName))
	return objectsError == nil && objectsInfo.IsDir()
}
