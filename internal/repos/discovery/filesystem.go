package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/layout"
	"github.com/temirov/gitsplit/internal/repos/shared"
)

const (
	rootNotDirectoryErrorTemplateConstant = "discovery root %s is not a directory"
	rootInspectionErrorTemplateConstant   = "inspect discovery root %s: %w"
	walkFailureLogMessageConstant         = "skipping unreadable directory"
	invalidRedirectLogMessageConstant     = "ignoring git marker without a valid metadata directory"
	openFailureLogMessageConstant         = "ignoring working tree that cannot be opened"
	remotesFailureLogMessageConstant      = "ignoring working tree whose remotes cannot be read"
	missingOriginLogMessageConstant       = "skipping repository without origin remote"
	logFieldPathConstant                  = "path"
	logFieldRepositoryPathConstant        = "repository_path"
)

// ErrRootNotDirectory indicates the discovery root is missing or not a directory.
var ErrRootNotDirectory = errors.New("discovery root is not a directory")

// DiscoveredRepository is a git working tree found beneath a discovery root.
type DiscoveredRepository struct {
	// Path is slash separated and relative to the discovery root.
	Path              string
	OriginURL         string
	WorkingDirectory  string
	MetadataDirectory string
}

// RepositoryInspector reads the remotes of a working tree.
type RepositoryInspector interface {
	OpenRepository(executionContext context.Context, workingDirectory string) (gitrepo.Handle, error)
	ListRemotes(executionContext context.Context, handle gitrepo.Handle) (map[string]string, error)
}

// FilesystemRepositoryDiscoverer locates git working trees on disk.
type FilesystemRepositoryDiscoverer struct {
	fileSystem shared.FileSystem
	inspector  RepositoryInspector
	logger     *zap.Logger
}

// NewFilesystemRepositoryDiscoverer constructs a repository discoverer backed by filepath.WalkDir.
func NewFilesystemRepositoryDiscoverer(fileSystem shared.FileSystem, inspector RepositoryInspector, logger *zap.Logger) *FilesystemRepositoryDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesystemRepositoryDiscoverer{fileSystem: fileSystem, inspector: inspector, logger: logger}
}

// DiscoverRepositories lazily walks root and yields every working tree that has an origin remote.
// Working trees are not descended into, and the root itself is never reported.
func (discoverer *FilesystemRepositoryDiscoverer) DiscoverRepositories(executionContext context.Context, root string) iter.Seq[DiscoveredRepository] {
	cleanRoot := filepath.Clean(root)
	return func(yield func(DiscoveredRepository) bool) {
		_ = filepath.WalkDir(cleanRoot, func(path string, directoryEntry fs.DirEntry, walkError error) error {
			if executionContext.Err() != nil {
				return fs.SkipAll
			}
			if walkError != nil {
				discoverer.logger.Debug(walkFailureLogMessageConstant, zap.String(logFieldPathConstant, path), zap.Error(walkError))
				if directoryEntry != nil && directoryEntry.IsDir() && path != cleanRoot {
					return fs.SkipDir
				}
				return nil
			}
			if !directoryEntry.IsDir() {
				return nil
			}
			if directoryEntry.Name() == shared.GitMarkerNameConstant {
				return fs.SkipDir
			}
			if path == cleanRoot {
				return nil
			}
			if layout.IsMetadataDirectory(discoverer.fileSystem, path) {
				return fs.SkipDir
			}

			metadataDirectory, isWorkingTree := discoverer.resolveWorkingTree(path)
			if !isWorkingTree {
				return nil
			}

			repository, found := discoverer.describeRepository(executionContext, cleanRoot, path, metadataDirectory)
			if found && !yield(repository) {
				return fs.SkipAll
			}
			return fs.SkipDir
		})
	}
}

// CollectRepositories runs DiscoverRepositories to completion and returns the repositories sorted by path.
func (discoverer *FilesystemRepositoryDiscoverer) CollectRepositories(executionContext context.Context, root string) ([]DiscoveredRepository, error) {
	rootInfo, statError := discoverer.fileSystem.Stat(root)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: "+rootNotDirectoryErrorTemplateConstant, ErrRootNotDirectory, root)
		}
		return nil, fmt.Errorf(rootInspectionErrorTemplateConstant, root, statError)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("%w: "+rootNotDirectoryErrorTemplateConstant, ErrRootNotDirectory, root)
	}

	repositories := slices.Collect(discoverer.DiscoverRepositories(executionContext, root))
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	slices.SortFunc(repositories, func(first DiscoveredRepository, second DiscoveredRepository) int {
		return strings.Compare(first.Path, second.Path)
	})
	return repositories, nil
}

// resolveWorkingTree reports whether directoryPath holds a .git directory or a redirect file that
// resolves to a metadata directory.
func (discoverer *FilesystemRepositoryDiscoverer) resolveWorkingTree(directoryPath string) (string, bool) {
	markerKind, inspectError := layout.InspectMarker(discoverer.fileSystem, directoryPath)
	if inspectError != nil {
		discoverer.logger.Debug(walkFailureLogMessageConstant, zap.String(logFieldPathConstant, directoryPath), zap.Error(inspectError))
		return "", false
	}

	markerPath := filepath.Join(directoryPath, shared.GitMarkerNameConstant)
	switch markerKind {
	case layout.MarkerDirectory:
		if !layout.IsMetadataDirectory(discoverer.fileSystem, markerPath) {
			discoverer.logger.Debug(invalidRedirectLogMessageConstant, zap.String(logFieldPathConstant, directoryPath))
			return "", false
		}
		return markerPath, true
	case layout.MarkerRedirectFile:
		metadataDirectory, readError := layout.ReadGitFile(discoverer.fileSystem, markerPath)
		if readError != nil || !layout.IsMetadataDirectory(discoverer.fileSystem, metadataDirectory) {
			discoverer.logger.Debug(invalidRedirectLogMessageConstant, zap.String(logFieldPathConstant, directoryPath))
			return "", false
		}
		return metadataDirectory, true
	default:
		return "", false
	}
}

func (discoverer *FilesystemRepositoryDiscoverer) describeRepository(executionContext context.Context, root string, workingDirectory string, metadataDirectory string) (DiscoveredRepository, bool) {
	relativePath, relativeError := filepath.Rel(root, workingDirectory)
	if relativeError != nil {
		return DiscoveredRepository{}, false
	}
	repositoryPath := filepath.ToSlash(relativePath)

	handle, openError := discoverer.inspector.OpenRepository(executionContext, workingDirectory)
	if openError != nil {
		discoverer.logger.Debug(openFailureLogMessageConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath), zap.Error(openError))
		return DiscoveredRepository{}, false
	}

	remotes, remotesError := discoverer.inspector.ListRemotes(executionContext, handle)
	if remotesError != nil {
		discoverer.logger.Debug(remotesFailureLogMessageConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath), zap.Error(remotesError))
		return DiscoveredRepository{}, false
	}

	originURL, hasOrigin := remotes[shared.OriginRemoteNameConstant]
	if !hasOrigin || len(strings.TrimSpace(originURL)) == 0 {
		discoverer.logger.Debug(missingOriginLogMessageConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath))
		return DiscoveredRepository{}, false
	}

	if len(handle.MetadataDirectory) > 0 {
		metadataDirectory = handle.MetadataDirectory
	}
	return DiscoveredRepository{
		Path:              repositoryPath,
		OriginURL:         strings.TrimSpace(originURL),
		WorkingDirectory:  workingDirectory,
		MetadataDirectory: metadataDirectory,
	}, true
}
