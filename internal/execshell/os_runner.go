package execshell

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
)

const (
	environmentAssignmentSeparatorConstant = "="
	gitTerminalPromptVariableConstant      = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant      = "0"
)

// repositoryLocatorVariables override where git looks for a repository. An inherited value would
// redirect every command away from the metadata directory named on the command line.
var repositoryLocatorVariables = []string{
	"GIT_DIR",
	"GIT_WORK_TREE",
	"GIT_INDEX_FILE",
	"GIT_OBJECT_DIRECTORY",
	"GIT_ALTERNATE_OBJECT_DIRECTORIES",
	"GIT_COMMON_DIR",
	"GIT_NAMESPACE",
	"GIT_PREFIX",
}

// OSCommandRunner executes commands through os/exec. Git commands run with the repository locator
// variables removed and interactive credential prompts disabled.
type OSCommandRunner struct {
	baseEnvironment func() []string
}

// NewOSCommandRunner constructs a runner that inherits the process environment.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{baseEnvironment: os.Environ}
}

// Run executes the supplied command. A non-zero exit is reported through ExecutionResult, not as an error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.CommandContext(executionContext, string(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}
	executable.Env = runner.environment(command)

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer

	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError != nil {
		exitError := &exec.ExitError{}
		if !errors.As(runError, &exitError) {
			return ExecutionResult{}, runError
		}
		result.ExitCode = exitError.ExitCode()
	}
	return result, nil
}

// environment builds the child environment: inherited entries first, then the git adjustments,
// then the command's own variables in key order.
func (runner *OSCommandRunner) environment(command ShellCommand) []string {
	inherited := os.Environ
	if runner.baseEnvironment != nil {
		inherited = runner.baseEnvironment
	}

	overrides := make(map[string]string, len(command.Details.EnvironmentVariables)+1)
	if command.Name == CommandGit {
		overrides[gitTerminalPromptVariableConstant] = gitTerminalPromptDisabledConstant
	}
	maps.Copy(overrides, command.Details.EnvironmentVariables)

	merged := make([]string, 0, len(overrides))
	for _, entry := range inherited() {
		variableName, _, _ := strings.Cut(entry, environmentAssignmentSeparatorConstant)
		if command.Name == CommandGit && slices.Contains(repositoryLocatorVariables, variableName) {
			continue
		}
		if _, overridden := overrides[variableName]; overridden {
			continue
		}
		merged = append(merged, entry)
	}
	for _, variableName := range slices.Sorted(maps.Keys(overrides)) {
		merged = append(merged, variableName+environmentAssignmentSeparatorConstant+overrides[variableName])
	}
	return merged
}
