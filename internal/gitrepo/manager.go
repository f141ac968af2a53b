package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/gitsplit/internal/execshell"
)

const (
	// BackendLibrary selects the go-git implementation.
	BackendLibrary = "library"
	// BackendCommandLine selects the git binary implementation.
	BackendCommandLine = "cli"

	// CoreSectionConstant names the git configuration section holding worktree settings.
	CoreSectionConstant = "core"
	// WorktreeKeyConstant names the configuration key pointing metadata at its working tree.
	WorktreeKeyConstant = "worktree"

	unsupportedBackendErrorTemplateConstant = "%w %q (expected %s or %s)"
	notARepositoryErrorTemplateConstant     = "%w: %s"
	configurationKeySeparatorConstant       = "."
)

var (
	// ErrNotARepository indicates the inspected path is not a git repository.
	ErrNotARepository = errors.New("not a git repository")
	// ErrGitExecutorNotConfigured indicates the command-line backend was constructed without an executor.
	ErrGitExecutorNotConfigured = errors.New("git executor not configured")
	// ErrUnsupportedBackend indicates an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported git backend")
)

// Handle identifies an opened repository by its working tree and metadata directory.
type Handle struct {
	WorkingDirectory  string
	MetadataDirectory string
}

// RepositoryManager exposes the git operations required by the reconciler.
type RepositoryManager interface {
	CloneWithSeparateMetadataDirectory(executionContext context.Context, remoteURL string, workingDirectory string, metadataDirectory string) (Handle, error)
	OpenRepository(executionContext context.Context, workingDirectory string) (Handle, error)
	OpenMetadataDirectory(executionContext context.Context, metadataDirectory string) (Handle, error)
	ListRemotes(executionContext context.Context, handle Handle) (map[string]string, error)
	SetConfigValue(executionContext context.Context, handle Handle, section string, key string, value string) error
	ResolveMetadataDirectory(executionContext context.Context, handle Handle) (string, error)
}

// GitExecutor runs git commands on behalf of the command-line backend.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// NewRepositoryManager selects a backend by name. The executor is only required for the command-line backend.
func NewRepositoryManager(backend string, executor GitExecutor) (RepositoryManager, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendLibrary, "":
		return NewLibraryRepositoryManager(), nil
	case BackendCommandLine:
		return NewCommandLineRepositoryManager(executor)
	default:
		return nil, fmt.Errorf(unsupportedBackendErrorTemplateConstant, ErrUnsupportedBackend, backend, BackendLibrary, BackendCommandLine)
	}
}

func notARepositoryError(path string) error {
	return fmt.Errorf(notARepositoryErrorTemplateConstant, ErrNotARepository, path)
}

func configurationKey(section string, key string) string {
	return section + configurationKeySeparatorConstant + key
}
