package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitConfigSubcommandNameConstant   = "config"
	gitDirectoryFlagConstant          = "--git-dir"
	gitChangeDirectoryFlagConstant    = "-C"
	gitSeparateGitDirFlagConstant     = "--separate-git-dir"
	gitGetRegexpFlagConstant          = "--get-regexp"
)

const (
	gitCloneStartTemplateConstant                  = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant                = "Cloned %s into %s"
	gitCloneFailureTemplateConstant                = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant       = "Unable to clone %s into %s: %s"
	gitRevParseStartTemplateConstant               = "Resolving git directory for %s"
	gitRevParseSuccessTemplateConstant             = "Resolved git directory for %s"
	gitRevParseFailureTemplateConstant             = "%s is not a git repository (exit code %d%s)"
	gitRevParseExecutionFailureTemplateConstant    = "Unable to resolve git directory for %s: %s"
	gitConfigReadStartTemplateConstant             = "Reading remotes of %s"
	gitConfigReadSuccessTemplateConstant           = "Read remotes of %s"
	gitConfigReadFailureTemplateConstant           = "No remotes found for %s (exit code %d%s)"
	gitConfigReadExecutionFailureTemplateConstant  = "Unable to read remotes of %s: %s"
	gitConfigWriteStartTemplateConstant            = "Setting %s to %s in %s"
	gitConfigWriteSuccessTemplateConstant          = "Set %s to %s in %s"
	gitConfigWriteFailureTemplateConstant          = "Failed to set %s to %s in %s (exit code %d%s)"
	gitConfigWriteExecutionFailureTemplateConstant = "Unable to set %s to %s in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommandIndex, subcommand := formatter.locateSubcommand(command.Details.Arguments)
	if subcommandIndex < 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	subcommandArguments := command.Details.Arguments[subcommandIndex+1:]

	switch subcommand {
	case gitCloneSubcommandNameConstant:
		return formatter.describeGitCloneMessage(subcommandArguments, result, failure, stage)
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitRevParseMessage(command, result, failure, stage)
	case gitConfigSubcommandNameConstant:
		return formatter.describeGitConfigMessage(command, subcommandArguments, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

// locateSubcommand skips the global -C and --git-dir options preceding the git subcommand.
func (formatter CommandMessageFormatter) locateSubcommand(arguments []string) (int, string) {
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		argument := strings.TrimSpace(arguments[argumentIndex])
		if argument == gitDirectoryFlagConstant || argument == gitChangeDirectoryFlagConstant {
			argumentIndex++
			continue
		}
		if strings.HasPrefix(argument, "-") {
			continue
		}
		return argumentIndex, argument
	}
	return -1, emptyStringConstant
}

func (formatter CommandMessageFormatter) describeGitCloneMessage(arguments []string, result ExecutionResult, failure error, stage messageStage) string {
	positionalArguments := make([]string, 0, 2)
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		argument := arguments[argumentIndex]
		if argument == gitSeparateGitDirFlagConstant {
			argumentIndex++
			continue
		}
		if strings.HasPrefix(argument, "-") {
			continue
		}
		positionalArguments = append(positionalArguments, argument)
	}

	source := formatter.ensureValue(formatter.argumentAtIndex(positionalArguments, 0))
	destination := formatter.ensureValue(formatter.argumentAtIndex(positionalArguments, 1))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCloneStartTemplateConstant, source, destination)
	case messageStageSuccess:
		return fmt.Sprintf(gitCloneSuccessTemplateConstant, source, destination)
	case messageStageFailure:
		return fmt.Sprintf(gitCloneFailureTemplateConstant, source, destination, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, source, destination, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitRevParseMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	target := formatter.describeTarget(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitRevParseStartTemplateConstant, target)
	case messageStageSuccess:
		return fmt.Sprintf(gitRevParseSuccessTemplateConstant, target)
	case messageStageFailure:
		return fmt.Sprintf(gitRevParseFailureTemplateConstant, target, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitRevParseExecutionFailureTemplateConstant, target, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeGitConfigMessage(command ShellCommand, arguments []string, result ExecutionResult, failure error, stage messageStage) string {
	target := formatter.describeTarget(command)

	if containsArgument(arguments, gitGetRegexpFlagConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitConfigReadStartTemplateConstant, target)
		case messageStageSuccess:
			return fmt.Sprintf(gitConfigReadSuccessTemplateConstant, target)
		case messageStageFailure:
			return fmt.Sprintf(gitConfigReadFailureTemplateConstant, target, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		default:
			return fmt.Sprintf(gitConfigReadExecutionFailureTemplateConstant, target, formatter.describeFailure(failure))
		}
	}

	key := formatter.ensureValue(formatter.argumentAtIndex(arguments, 0))
	value := formatter.ensureValue(formatter.argumentAtIndex(arguments, 1))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitConfigWriteStartTemplateConstant, key, value, target)
	case messageStageSuccess:
		return fmt.Sprintf(gitConfigWriteSuccessTemplateConstant, key, value, target)
	case messageStageFailure:
		return fmt.Sprintf(gitConfigWriteFailureTemplateConstant, key, value, target, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(gitConfigWriteExecutionFailureTemplateConstant, key, value, target, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	label := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, label)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, label)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, label, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, label, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = commandLabel + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

// describeTarget names the repository a command operates on from its -C or --git-dir option.
func (formatter CommandMessageFormatter) describeTarget(command ShellCommand) string {
	if gitDirectory := findFlagValue(command.Details.Arguments, gitDirectoryFlagConstant); len(gitDirectory) > 0 {
		return gitDirectory
	}
	if changeDirectory := findFlagValue(command.Details.Arguments, gitChangeDirectoryFlagConstant); len(changeDirectory) > 0 {
		return changeDirectory
	}
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return emptyStringConstant
	}
	return strings.TrimSpace(arguments[index])
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return value
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex+1 < len(arguments); argumentIndex++ {
		if strings.TrimSpace(arguments[argumentIndex]) == flag {
			return strings.TrimSpace(arguments[argumentIndex+1])
		}
	}
	return emptyStringConstant
}
