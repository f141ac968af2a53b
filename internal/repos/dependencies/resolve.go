package dependencies

import (
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/execshell"
	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/repos/discovery"
	"github.com/temirov/gitsplit/internal/repos/filesystem"
	"github.com/temirov/gitsplit/internal/repos/shared"
	"github.com/temirov/gitsplit/internal/ui"
)

// ResolveRepositoryDiscoverer returns the provided discoverer or a filesystem-backed default.
func ResolveRepositoryDiscoverer(existing *discovery.FilesystemRepositoryDiscoverer, fileSystem shared.FileSystem, inspector discovery.RepositoryInspector, logger *zap.Logger) *discovery.FilesystemRepositoryDiscoverer {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemRepositoryDiscoverer(ResolveFileSystem(fileSystem), inspector, logger)
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default that reports
// command events through the console logger.
func ResolveGitExecutor(existing gitrepo.GitExecutor, logger *zap.Logger) (gitrepo.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, creationError := execshell.NewShellExecutor(
		logger,
		commandRunner,
		execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(logger)),
	)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveRepositoryManager returns the provided repository manager or constructs one for the backend.
// The git executor is only created for the command line backend.
func ResolveRepositoryManager(existing gitrepo.RepositoryManager, backend string, executor gitrepo.GitExecutor, logger *zap.Logger) (gitrepo.RepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend != gitrepo.BackendCommandLine {
		return gitrepo.NewRepositoryManager(backend, nil)
	}

	resolvedExecutor, executorError := ResolveGitExecutor(executor, logger)
	if executorError != nil {
		return nil, executorError
	}
	return gitrepo.NewRepositoryManager(backend, resolvedExecutor)
}
