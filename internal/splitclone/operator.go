package splitclone

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/layout"
	"github.com/temirov/gitsplit/internal/repos/shared"
)

const (
	temporaryDirectoryTemplateConstant        = ".%s.gitsplit-%s"
	gitFilePermissionsConstant                = fs.FileMode(0o644)
	cloneFailedErrorTemplateConstant          = "%w: %s: %w"
	partialMetadataErrorTemplateConstant      = "clone left partial metadata in %s (remove it manually): %v"
	metadataExistsErrorTemplateConstant       = "metadata directory %s already exists"
	worktreeNotDirectoryErrorTemplateConstant = "working tree %s exists and is not a directory"
	inlineMetadataErrorTemplateConstant       = "working tree %s already holds a .git directory"
	identifierErrorTemplateConstant           = "allocate temporary directory name: %w"
	bindConfigErrorTemplateConstant           = "set core.worktree for %s: %w"
	bindGitFileErrorTemplateConstant          = "write %s: %w"
	moveWorktreeErrorTemplateConstant         = "move checkout into %s: %w"
	cloneStartedLogMessageConstant            = "cloning repository"
	cloneCompletedLogMessageConstant          = "repository materialized"
	cloneFailedLogMessageConstant             = "clone failed"
	temporaryCleanupLogMessageConstant        = "failed to remove temporary checkout"
	worktreeRelinkedLogMessageConstant        = "kept existing working tree and rewrote its git redirect"
	logFieldRemoteURLConstant                 = "remote_url"
	logFieldWorktreePathConstant              = "worktree_path"
	logFieldMetadataDirectoryConstant         = "metadata_directory"
	logFieldTemporaryDirectoryConstant        = "temporary_directory"
)

var (
	// ErrCloneFailed indicates a repository could not be cloned into the split layout.
	ErrCloneFailed = errors.New("clone failed")
	// ErrOperatorNotConfigured indicates a missing collaborator.
	ErrOperatorNotConfigured = errors.New("split clone operator not configured")
)

// PartialMetadataError reports a failed clone whose metadata directory could not be removed.
type PartialMetadataError struct {
	MetadataDirectory string
	Cause             error
}

// Error describes the directory that needs manual recovery.
func (partialError *PartialMetadataError) Error() string {
	return fmt.Sprintf(partialMetadataErrorTemplateConstant, partialError.MetadataDirectory, partialError.Cause)
}

// Unwrap exposes the clone failure.
func (partialError *PartialMetadataError) Unwrap() error {
	return partialError.Cause
}

// IdentifierGenerator allocates unique suffixes for temporary checkouts.
type IdentifierGenerator interface {
	NewIdentifier() (string, error)
}

// MaterializeRequest names a repository and the two locations of its split layout.
type MaterializeRequest struct {
	RemoteURL         string
	WorktreePath      string
	MetadataDirectory string
}

// Operator clones repositories with separate metadata directories and binds them to their final
// working trees.
type Operator struct {
	manager      gitrepo.RepositoryManager
	fileSystem   shared.FileSystem
	identifiers  IdentifierGenerator
	logger       *zap.Logger
	cloneTimeout time.Duration
}

// NewOperator constructs an Operator. A zero cloneTimeout disables the per-clone deadline.
func NewOperator(manager gitrepo.RepositoryManager, fileSystem shared.FileSystem, identifiers IdentifierGenerator, logger *zap.Logger, cloneTimeout time.Duration) (*Operator, error) {
	if manager == nil || fileSystem == nil || identifiers == nil {
		return nil, ErrOperatorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operator{
		manager:      manager,
		fileSystem:   fileSystem,
		identifiers:  identifiers,
		logger:       logger,
		cloneTimeout: cloneTimeout,
	}, nil
}

// CloneSplit clones remoteURL into temporaryWorkingDirectory with its metadata under metadataDirectory.
func (operator *Operator) CloneSplit(executionContext context.Context, remoteURL string, temporaryWorkingDirectory string, metadataDirectory string) (gitrepo.Handle, error) {
	handle, cloneError := operator.manager.CloneWithSeparateMetadataDirectory(executionContext, remoteURL, temporaryWorkingDirectory, metadataDirectory)
	if cloneError != nil {
		return gitrepo.Handle{}, fmt.Errorf(cloneFailedErrorTemplateConstant, ErrCloneFailed, remoteURL, cloneError)
	}
	return handle, nil
}

// BindWorktree points the metadata directory of handle at finalWorktreePath through core.worktree and
// writes an absolute gitdir redirect into the working tree.
func (operator *Operator) BindWorktree(executionContext context.Context, handle gitrepo.Handle, finalWorktreePath string) (gitrepo.Handle, error) {
	metadataDirectory, resolveError := operator.manager.ResolveMetadataDirectory(executionContext, handle)
	if resolveError != nil {
		return gitrepo.Handle{}, resolveError
	}
	absoluteMetadataDirectory, metadataAbsError := operator.fileSystem.Abs(metadataDirectory)
	if metadataAbsError != nil {
		return gitrepo.Handle{}, metadataAbsError
	}
	absoluteWorktreePath, worktreeAbsError := operator.fileSystem.Abs(finalWorktreePath)
	if worktreeAbsError != nil {
		return gitrepo.Handle{}, worktreeAbsError
	}

	boundHandle := gitrepo.Handle{WorkingDirectory: absoluteWorktreePath, MetadataDirectory: absoluteMetadataDirectory}
	if configError := operator.manager.SetConfigValue(executionContext, boundHandle, gitrepo.CoreSectionConstant, gitrepo.WorktreeKeyConstant, absoluteWorktreePath); configError != nil {
		return gitrepo.Handle{}, fmt.Errorf(bindConfigErrorTemplateConstant, absoluteMetadataDirectory, configError)
	}

	gitFilePath := filepath.Join(absoluteWorktreePath, shared.GitMarkerNameConstant)
	if writeError := operator.fileSystem.WriteFile(gitFilePath, layout.GitFileContent(absoluteMetadataDirectory), gitFilePermissionsConstant); writeError != nil {
		return gitrepo.Handle{}, fmt.Errorf(bindGitFileErrorTemplateConstant, gitFilePath, writeError)
	}
	return boundHandle, nil
}

// Materialize clones request.RemoteURL into a temporary sibling of the final working tree, binds it, and
// moves the checkout into place. An existing working tree is kept and re-linked instead. The temporary
// checkout is always removed. Failures wrap ErrCloneFailed; when the metadata directory cannot be cleaned
// up the error is a *PartialMetadataError.
func (operator *Operator) Materialize(executionContext context.Context, request MaterializeRequest) error {
	worktreeExists, preconditionError := operator.checkPreconditions(request)
	if preconditionError != nil {
		return fmt.Errorf(cloneFailedErrorTemplateConstant, ErrCloneFailed, request.WorktreePath, preconditionError)
	}

	identifier, identifierError := operator.identifiers.NewIdentifier()
	if identifierError != nil {
		return fmt.Errorf(cloneFailedErrorTemplateConstant, ErrCloneFailed, request.WorktreePath, fmt.Errorf(identifierErrorTemplateConstant, identifierError))
	}
	temporaryDirectory := filepath.Join(
		filepath.Dir(request.WorktreePath),
		fmt.Sprintf(temporaryDirectoryTemplateConstant, filepath.Base(request.WorktreePath), identifier),
	)

	fields := []zap.Field{
		zap.String(logFieldRemoteURLConstant, request.RemoteURL),
		zap.String(logFieldWorktreePathConstant, request.WorktreePath),
		zap.String(logFieldMetadataDirectoryConstant, request.MetadataDirectory),
		zap.String(logFieldTemporaryDirectoryConstant, temporaryDirectory),
	}
	operator.logger.Info(cloneStartedLogMessageConstant, fields...)

	defer func() {
		if removeError := operator.fileSystem.RemoveAll(temporaryDirectory); removeError != nil {
			operator.logger.Warn(temporaryCleanupLogMessageConstant, append(fields, zap.Error(removeError))...)
		}
	}()

	materializeError := operator.materialize(executionContext, request, temporaryDirectory, worktreeExists)
	if materializeError != nil {
		operator.logger.Warn(cloneFailedLogMessageConstant, append(fields, zap.Error(materializeError))...)
		return operator.abandon(request, worktreeExists, materializeError)
	}
	operator.logger.Info(cloneCompletedLogMessageConstant, fields...)
	return nil
}

func (operator *Operator) materialize(executionContext context.Context, request MaterializeRequest, temporaryDirectory string, worktreeExists bool) error {
	cloneContext := executionContext
	if operator.cloneTimeout > 0 {
		var cancel context.CancelFunc
		cloneContext, cancel = context.WithTimeout(executionContext, operator.cloneTimeout)
		defer cancel()
	}

	handle, cloneError := operator.CloneSplit(cloneContext, request.RemoteURL, temporaryDirectory, request.MetadataDirectory)
	if cloneError != nil {
		return cloneError
	}

	if worktreeExists {
		operator.logger.Info(worktreeRelinkedLogMessageConstant, zap.String(logFieldWorktreePathConstant, request.WorktreePath))
	} else if renameError := operator.fileSystem.Rename(temporaryDirectory, request.WorktreePath); renameError != nil {
		return fmt.Errorf(moveWorktreeErrorTemplateConstant, request.WorktreePath, renameError)
	}

	handle.WorkingDirectory = request.WorktreePath
	if _, bindError := operator.BindWorktree(executionContext, handle, request.WorktreePath); bindError != nil {
		return bindError
	}
	return nil
}

// abandon removes what a failed materialization created. A working tree that existed beforehand is never
// touched.
func (operator *Operator) abandon(request MaterializeRequest, worktreeExisted bool, cause error) error {
	if !worktreeExisted {
		_ = operator.fileSystem.RemoveAll(request.WorktreePath)
	}

	failure := cause
	if !errors.Is(failure, ErrCloneFailed) {
		failure = fmt.Errorf(cloneFailedErrorTemplateConstant, ErrCloneFailed, request.RemoteURL, cause)
	}

	if removeError := operator.fileSystem.RemoveAll(request.MetadataDirectory); removeError != nil {
		return &PartialMetadataError{MetadataDirectory: request.MetadataDirectory, Cause: failure}
	}
	if _, statError := operator.fileSystem.Lstat(request.MetadataDirectory); statError == nil {
		return &PartialMetadataError{MetadataDirectory: request.MetadataDirectory, Cause: failure}
	}
	return failure
}

// checkPreconditions reports whether the working tree already exists. The metadata directory must be
// absent, and an existing working tree must be a directory without inline metadata.
func (operator *Operator) checkPreconditions(request MaterializeRequest) (bool, error) {
	if _, metadataStatError := operator.fileSystem.Lstat(request.MetadataDirectory); metadataStatError == nil {
		return false, fmt.Errorf(metadataExistsErrorTemplateConstant, request.MetadataDirectory)
	} else if !errors.Is(metadataStatError, fs.ErrNotExist) {
		return false, metadataStatError
	}

	worktreeInfo, worktreeStatError := operator.fileSystem.Lstat(request.WorktreePath)
	if worktreeStatError != nil {
		if errors.Is(worktreeStatError, fs.ErrNotExist) {
			return false, nil
		}
		return false, worktreeStatError
	}
	if !worktreeInfo.IsDir() {
		return false, fmt.Errorf(worktreeNotDirectoryErrorTemplateConstant, request.WorktreePath)
	}

	markerKind, markerError := layout.InspectMarker(operator.fileSystem, request.WorktreePath)
	if markerError != nil {
		return false, markerError
	}
	if markerKind == layout.MarkerDirectory {
		return false, fmt.Errorf(inlineMetadataErrorTemplateConstant, request.WorktreePath)
	}
	return true, nil
}
