package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"

	"github.com/temirov/gitsplit/internal/repos/shared"
)

const (
	violationMessageTemplateConstant = "invalid layout for %s under %s: %s (%s)"
	violationShortTemplateConstant   = "invalid layout for %s under %s: %s"

	// ReasonNotDirectory marks an ancestor that exists but is not a plain directory.
	ReasonNotDirectory = "ancestor is not a directory"
	// ReasonSymbolicLink marks an ancestor that is a symbolic link.
	ReasonSymbolicLink = "ancestor is a symbolic link"
	// ReasonNestedWorkingTree marks an ancestor that is a git working tree.
	ReasonNestedWorkingTree = "ancestor is a git working tree"
	// ReasonNestedMetadata marks an ancestor that is a git metadata directory.
	ReasonNestedMetadata = "ancestor is a git metadata directory"
	// ReasonOutsideBoundary marks a candidate that does not lie beneath the boundary root.
	ReasonOutsideBoundary = "path is outside the boundary root"
	// ReasonUnreadable marks an ancestor whose metadata could not be read.
	ReasonUnreadable = "ancestor cannot be inspected"
)

// StructureViolation describes why a candidate path cannot be inserted beneath a boundary root.
type StructureViolation struct {
	CandidatePath string
	BoundaryRoot  string
	OffendingPath string
	Reason        string
}

// Error describes the violation.
func (violation *StructureViolation) Error() string {
	if len(violation.OffendingPath) == 0 {
		return fmt.Sprintf(violationShortTemplateConstant, violation.CandidatePath, violation.BoundaryRoot, violation.Reason)
	}
	return fmt.Sprintf(violationMessageTemplateConstant, violation.CandidatePath, violation.BoundaryRoot, violation.Reason, violation.OffendingPath)
}

// StructureValidator checks that a path can be created without nesting inside another repository.
type StructureValidator struct {
	fileSystem shared.FileSystem
}

// NewStructureValidator constructs a validator over the provided file system.
func NewStructureValidator(fileSystem shared.FileSystem) *StructureValidator {
	return &StructureValidator{fileSystem: fileSystem}
}

// Validate reports whether every ancestor strictly between candidatePath and boundaryRoot is safe.
func (validator *StructureValidator) Validate(candidatePath string, boundaryRoot string) bool {
	return validator.Inspect(candidatePath, boundaryRoot) == nil
}

// Inspect walks from candidatePath towards boundaryRoot and returns a *StructureViolation for the
// first unsafe ancestor. Ancestors that do not exist yet are accepted.
func (validator *StructureValidator) Inspect(candidatePath string, boundaryRoot string) error {
	cleanCandidate := filepath.Clean(candidatePath)
	cleanBoundary := filepath.Clean(boundaryRoot)

	if cleanCandidate == cleanBoundary || !Contains(cleanBoundary, cleanCandidate) {
		return &StructureViolation{CandidatePath: cleanCandidate, BoundaryRoot: cleanBoundary, Reason: ReasonOutsideBoundary}
	}

	currentPath := filepath.Dir(cleanCandidate)
	for currentPath != cleanBoundary {
		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return &StructureViolation{CandidatePath: cleanCandidate, BoundaryRoot: cleanBoundary, OffendingPath: currentPath, Reason: ReasonOutsideBoundary}
		}

		if reason := validator.inspectAncestor(currentPath); len(reason) > 0 {
			return &StructureViolation{CandidatePath: cleanCandidate, BoundaryRoot: cleanBoundary, OffendingPath: currentPath, Reason: reason}
		}
		currentPath = parentPath
	}

	return nil
}

func (validator *StructureValidator) inspectAncestor(ancestorPath string) string {
	ancestorInfo, statError := validator.fileSystem.Lstat(ancestorPath)
	if statError != nil {
		// ENOTDIR means a shallower ancestor is a file; keep walking so it is reported.
		if errors.Is(statError, fs.ErrNotExist) || errors.Is(statError, syscall.ENOTDIR) {
			return ""
		}
		return ReasonUnreadable
	}

	if ancestorInfo.Mode()&fs.ModeSymlink != 0 {
		return ReasonSymbolicLink
	}
	if !ancestorInfo.IsDir() {
		return ReasonNotDirectory
	}
	if HasGitMarker(validator.fileSystem, ancestorPath) {
		return ReasonNestedWorkingTree
	}
	if IsMetadataDirectory(validator.fileSystem, ancestorPath) {
		return ReasonNestedMetadata
	}
	return ""
}
