package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/layout"
	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/repos/dependencies"
	"github.com/temirov/gitsplit/internal/repos/discovery"
	"github.com/temirov/gitsplit/internal/repos/shared"
	"github.com/temirov/gitsplit/internal/splitclone"
	"github.com/temirov/gitsplit/internal/ui"
)

const (
	logFieldRepositoryPathConstant    = "repository_path"
	logFieldRunIdentifierConstant     = "run_id"
	logFieldManifestConstant          = "manifest"
	logFieldRepositoryCountConstant   = "repositories"
	logFieldWorktreePathConstant      = "worktree_path"
	logFieldMetadataDirectoryConstant = "metadata_directory"
	stateResolutionLogMessageConstant = "metadata directory could not be opened"
	manifestLoadedLogMessageConstant  = "manifest loaded"
	missingCollaboratorTemplate       = "%w: %s is required"
	storeCollaboratorName             = "manifest store"
	managerCollaboratorName           = "repository manager"
	materializerCollaboratorName      = "materializer"
)

// RepositoryDiscoverer lists the working trees beneath a root.
type RepositoryDiscoverer interface {
	CollectRepositories(executionContext context.Context, root string) ([]discovery.DiscoveredRepository, error)
}

// Materializer clones a repository into the split layout.
type Materializer interface {
	Materialize(executionContext context.Context, request splitclone.MaterializeRequest) error
}

// PathValidator checks that a path can be created beneath a boundary root.
type PathValidator interface {
	Inspect(candidatePath string, boundaryRoot string) error
}

// StatusRenderer decorates status labels for output.
type StatusRenderer interface {
	Stored(label string) string
	Unstored(label string) string
	Failure(label string) string
	Detail(label string) string
}

// Dependencies wires the collaborators of an Engine. Store, Manager, and Materializer are required;
// the rest default to filesystem-backed implementations.
type Dependencies struct {
	Store         manifest.Store
	Manager       gitrepo.RepositoryManager
	Materializer  Materializer
	Discoverer    RepositoryDiscoverer
	Validator     PathValidator
	FileSystem    shared.FileSystem
	Reporter      shared.Reporter
	Renderer      StatusRenderer
	Logger        *zap.Logger
	RunIdentifier string
}

// Engine reconciles a manifest against the workspace. Mutating operations are serialized so that
// validation and creation of a directory chain, and the discovery snapshot and manifest read of Update and
// Remove, each happen as one critical section.
type Engine struct {
	dependencies Dependencies
	logger       *zap.Logger
	mutex        sync.Mutex
}

// NewEngine validates dependencies and fills in defaults.
func NewEngine(engineDependencies Dependencies) (*Engine, error) {
	switch {
	case engineDependencies.Store == nil:
		return nil, fmt.Errorf(missingCollaboratorTemplate, ErrEngineNotConfigured, storeCollaboratorName)
	case engineDependencies.Manager == nil:
		return nil, fmt.Errorf(missingCollaboratorTemplate, ErrEngineNotConfigured, managerCollaboratorName)
	case engineDependencies.Materializer == nil:
		return nil, fmt.Errorf(missingCollaboratorTemplate, ErrEngineNotConfigured, materializerCollaboratorName)
	}

	logger := engineDependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(engineDependencies.RunIdentifier) > 0 {
		logger = logger.With(zap.String(logFieldRunIdentifierConstant, engineDependencies.RunIdentifier))
	}

	engineDependencies.FileSystem = dependencies.ResolveFileSystem(engineDependencies.FileSystem)
	if engineDependencies.Validator == nil {
		engineDependencies.Validator = layout.NewStructureValidator(engineDependencies.FileSystem)
	}
	if engineDependencies.Discoverer == nil {
		engineDependencies.Discoverer = dependencies.ResolveRepositoryDiscoverer(nil, engineDependencies.FileSystem, engineDependencies.Manager, logger)
	}
	if engineDependencies.Reporter == nil {
		engineDependencies.Reporter = shared.NewWriterReporter(nil)
	}
	if engineDependencies.Renderer == nil {
		engineDependencies.Renderer = ui.NewStatusStyler(false)
	}

	return &Engine{dependencies: engineDependencies, logger: logger}, nil
}

func (engine *Engine) loadManifest(executionContext context.Context) (manifest.Manifest, Layout, error) {
	loaded, loadError := engine.dependencies.Store.Load(executionContext)
	if loadError != nil {
		return manifest.Manifest{}, Layout{}, loadError
	}
	engine.logger.Debug(manifestLoadedLogMessageConstant, zap.String(logFieldManifestConstant, engine.dependencies.Store.Location()), zap.Int(logFieldRepositoryCountConstant, loaded.Len()))
	return loaded, LayoutFromSettings(loaded.Settings), nil
}

func (engine *Engine) printf(format string, arguments ...any) {
	engine.dependencies.Reporter.Printf(format, arguments...)
}
