package gitrepo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/temirov/gitsplit/internal/execshell"
)

const (
	gitCloneSubcommandConstant            = "clone"
	gitSeparateGitDirFlagConstant         = "--separate-git-dir"
	gitDirectoryFlagConstant              = "--git-dir"
	gitChangeDirectoryFlagConstant        = "-C"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitAbsoluteGitDirFlagConstant         = "--absolute-git-dir"
	gitConfigSubcommandConstant           = "config"
	gitGetFlagConstant                    = "--get"
	gitGetRegexpFlagConstant              = "--get-regexp"
	gitRemoteURLPatternConstant           = `^remote\..*\.url$`
	gitRemoteKeyPrefixConstant            = "remote."
	gitRemoteKeySuffixConstant            = ".url"
	gitCeilingDirectoriesVariableConstant = "GIT_CEILING_DIRECTORIES"
	gitTerminalPromptVariableConstant     = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant     = "0"
	gitConfigMissingKeyExitCodeConstant   = 1
)

// CommandLineRepositoryManager implements RepositoryManager by invoking the git binary.
type CommandLineRepositoryManager struct {
	executor GitExecutor
}

// NewCommandLineRepositoryManager constructs the git binary backend.
func NewCommandLineRepositoryManager(executor GitExecutor) (*CommandLineRepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &CommandLineRepositoryManager{executor: executor}, nil
}

// CloneWithSeparateMetadataDirectory runs git clone --separate-git-dir.
func (manager *CommandLineRepositoryManager) CloneWithSeparateMetadataDirectory(executionContext context.Context, remoteURL string, workingDirectory string, metadataDirectory string) (Handle, error) {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitCloneSubcommandConstant, gitSeparateGitDirFlagConstant, metadataDirectory, remoteURL, workingDirectory},
		EnvironmentVariables: map[string]string{gitTerminalPromptVariableConstant: gitTerminalPromptDisabledConstant},
	})
	if executionError != nil {
		return Handle{}, executionError
	}
	return Handle{WorkingDirectory: workingDirectory, MetadataDirectory: metadataDirectory}, nil
}

// OpenRepository resolves the metadata directory of the working tree at workingDirectory without
// searching enclosing directories.
func (manager *CommandLineRepositoryManager) OpenRepository(executionContext context.Context, workingDirectory string) (Handle, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitChangeDirectoryFlagConstant, workingDirectory, gitRevParseSubcommandConstant, gitAbsoluteGitDirFlagConstant},
		EnvironmentVariables: map[string]string{gitCeilingDirectoriesVariableConstant: filepath.Dir(filepath.Clean(workingDirectory))},
	})
	if executionError != nil {
		return Handle{}, translateCommandError(workingDirectory, executionError)
	}
	return Handle{WorkingDirectory: workingDirectory, MetadataDirectory: strings.TrimSpace(executionResult.StandardOutput)}, nil
}

// OpenMetadataDirectory verifies metadataDirectory is a git directory and reads its core.worktree.
func (manager *CommandLineRepositoryManager) OpenMetadataDirectory(executionContext context.Context, metadataDirectory string) (Handle, error) {
	resolvedDirectory, resolveError := manager.resolveGitDirectory(executionContext, metadataDirectory)
	if resolveError != nil {
		return Handle{}, resolveError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitDirectoryFlagConstant, resolvedDirectory, gitConfigSubcommandConstant, gitGetFlagConstant, configurationKey(CoreSectionConstant, WorktreeKeyConstant)},
	})
	if executionError != nil && !isMissingConfigurationKey(executionError) {
		return Handle{}, executionError
	}

	return Handle{
		WorkingDirectory:  resolveConfiguredWorktree(resolvedDirectory, executionResult.StandardOutput),
		MetadataDirectory: resolvedDirectory,
	}, nil
}

// ListRemotes reads remote.<name>.url entries from the repository configuration.
func (manager *CommandLineRepositoryManager) ListRemotes(executionContext context.Context, handle Handle) (map[string]string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: append(manager.targetArguments(handle), gitConfigSubcommandConstant, gitGetRegexpFlagConstant, gitRemoteURLPatternConstant),
	})
	if executionError != nil {
		if isMissingConfigurationKey(executionError) {
			return map[string]string{}, nil
		}
		return nil, translateCommandError(describeHandle(handle), executionError)
	}

	remotes := make(map[string]string)
	for _, line := range strings.Split(executionResult.StandardOutput, "\n") {
		configurationName, remoteURL, found := strings.Cut(strings.TrimSpace(line), " ")
		if !found {
			continue
		}
		remoteName := strings.TrimSuffix(strings.TrimPrefix(configurationName, gitRemoteKeyPrefixConstant), gitRemoteKeySuffixConstant)
		if _, exists := remotes[remoteName]; exists {
			continue
		}
		remotes[remoteName] = strings.TrimSpace(remoteURL)
	}
	return remotes, nil
}

// SetConfigValue runs git config section.key value.
func (manager *CommandLineRepositoryManager) SetConfigValue(executionContext context.Context, handle Handle, section string, key string, value string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: append(manager.targetArguments(handle), gitConfigSubcommandConstant, configurationKey(section, key), value),
	})
	return executionError
}

// ResolveMetadataDirectory returns the absolute metadata directory backing the handle.
func (manager *CommandLineRepositoryManager) ResolveMetadataDirectory(executionContext context.Context, handle Handle) (string, error) {
	if len(handle.MetadataDirectory) > 0 {
		return manager.resolveGitDirectory(executionContext, handle.MetadataDirectory)
	}
	openedHandle, openError := manager.OpenRepository(executionContext, handle.WorkingDirectory)
	if openError != nil {
		return "", openError
	}
	return openedHandle.MetadataDirectory, nil
}

func (manager *CommandLineRepositoryManager) resolveGitDirectory(executionContext context.Context, metadataDirectory string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitDirectoryFlagConstant, metadataDirectory, gitRevParseSubcommandConstant, gitAbsoluteGitDirFlagConstant},
	})
	if executionError != nil {
		return "", translateCommandError(metadataDirectory, executionError)
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

func (manager *CommandLineRepositoryManager) targetArguments(handle Handle) []string {
	if len(handle.MetadataDirectory) > 0 {
		return []string{gitDirectoryFlagConstant, handle.MetadataDirectory}
	}
	return []string{gitChangeDirectoryFlagConstant, handle.WorkingDirectory}
}

func translateCommandError(path string, executionError error) error {
	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		return errors.Join(notARepositoryError(path), executionError)
	}
	return executionError
}

func isMissingConfigurationKey(executionError error) bool {
	var failedError execshell.CommandFailedError
	return errors.As(executionError, &failedError) && failedError.Result.ExitCode == gitConfigMissingKeyExitCodeConstant
}
