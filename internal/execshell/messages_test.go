package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStartedMessageForSplitCloneNamesSourceAndDestination(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments: []string{"clone", "--separate-git-dir", "/srv/git/proj/a", "https://x/a.git", "/srv/work/.a.tmp"},
		},
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Cloning https://x/a.git into /srv/work/.a.tmp", message)
}

func TestBuildFailureMessageForRevParseUsesGitDirectory(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments: []string{"--git-dir", "/srv/git/proj/a", "rev-parse", "--absolute-git-dir"},
		},
	}

	message := formatter.BuildFailureMessage(command, ExecutionResult{ExitCode: 128, StandardError: "fatal: not a git repository\n"})

	require.Equal(t, "/srv/git/proj/a is not a git repository (exit code 128: fatal: not a git repository)", message)
}

func TestBuildMessagesForConfigCommands(t *testing.T) {
	formatter := CommandMessageFormatter{}
	writeCommand := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments: []string{"--git-dir", "/srv/git/proj/a", "config", "core.worktree", "/srv/work/proj/a"},
		},
	}
	readCommand := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments: []string{"--git-dir", "/srv/git/proj/a", "config", "--get-regexp", `^remote\..*\.url$`},
		},
	}

	require.Equal(t, "Set core.worktree to /srv/work/proj/a in /srv/git/proj/a", formatter.BuildSuccessMessage(writeCommand))
	require.Equal(t, "Reading remotes of /srv/git/proj/a", formatter.BuildStartedMessage(readCommand))
	require.Equal(t, "Unable to read remotes of /srv/git/proj/a: boom", formatter.BuildExecutionFailureMessage(readCommand, errors.New("boom")))
}

func TestBuildGenericMessageIncludesWorkingDirectory(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name:    CommandGit,
		Details: CommandDetails{Arguments: []string{"--version"}, WorkingDirectory: "/workspace"},
	}

	require.Equal(t, "Running git --version (in /workspace)", formatter.BuildStartedMessage(command))
}
