package reconcile

import (
	"errors"
	"fmt"
)

const (
	// OperationFix names per-repository failures of Fix.
	OperationFix = "fix"
	// OperationClone names failures of CloneNew.
	OperationClone = "clone"
	// OperationUpdate names per-repository findings of Update.
	OperationUpdate = "update"
	// OperationRemove names per-repository failures of Remove.
	OperationRemove = "remove"
	// OperationCheck names per-repository failures of Check and List.
	OperationCheck = "check"

	repositoryErrorTemplateConstant = "%s %s: %v"
)

var (
	// ErrAlreadyExists indicates CloneNew was asked for a path that is already declared.
	ErrAlreadyExists = errors.New("repository already declared")
	// ErrTargetCollision indicates a working tree or metadata target already exists on disk.
	ErrTargetCollision = errors.New("target already exists")
	// ErrInvalidLayout indicates a directory-safety violation. It aborts the whole operation.
	ErrInvalidLayout = errors.New("invalid directory layout")
	// ErrEngineNotConfigured indicates a missing collaborator.
	ErrEngineNotConfigured = errors.New("reconciliation engine not configured")
)

// RepositoryError attributes a failure to one repository path.
type RepositoryError struct {
	Path      string
	Operation string
	Cause     error
}

// Error names the operation, the repository path, and the cause.
func (repositoryError *RepositoryError) Error() string {
	return fmt.Sprintf(repositoryErrorTemplateConstant, repositoryError.Operation, repositoryError.Path, repositoryError.Cause)
}

// Unwrap exposes the cause.
func (repositoryError *RepositoryError) Unwrap() error {
	return repositoryError.Cause
}

func newRepositoryError(operation string, repositoryPath string, cause error) *RepositoryError {
	return &RepositoryError{Path: repositoryPath, Operation: operation, Cause: cause}
}

// BatchReport summarizes a batch operation.
type BatchReport struct {
	Completed []string
	Skipped   []string
	Failures  []*RepositoryError
}

// Err joins every per-repository failure, or returns nil when the batch fully succeeded.
func (report BatchReport) Err() error {
	if len(report.Failures) == 0 {
		return nil
	}
	failures := make([]error, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failures = append(failures, failure)
	}
	return errors.Join(failures...)
}

func (report *BatchReport) fail(operation string, repositoryPath string, cause error) {
	report.Failures = append(report.Failures, newRepositoryError(operation, repositoryPath, cause))
}
