package repos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/repos/shared"
)

const (
	initUseConstant                  = "init"
	initShortDescription             = "Create an empty manifest"
	initLongDescription              = "init writes a manifest with no repositories and the given roots. An existing manifest is never overwritten."
	initWorktreeRootFlagName         = "worktree-root"
	initWorktreeRootFlagDescription  = "Directory that holds the working trees"
	initGitDirsRootFlagName          = "git-dirs-root"
	initGitDirsRootFlagDescription   = "Directory that holds the git metadata directories"
	initManifestDirectoryPermissions = 0o755
	initializedLineTemplateConstant  = "initialized %s\n"
	manifestExistsErrorTemplate      = "%w: %s"
	createManifestDirectoryTemplate  = "create manifest directory %s: %w"
)

// ErrManifestExists indicates init was asked to replace an existing manifest.
var ErrManifestExists = errors.New("manifest already exists")

// InitCommandBuilder assembles the init command.
type InitCommandBuilder struct {
	LoggerProvider LoggerProvider
	StoreProvider  StoreProvider
}

// Build constructs the init command.
func (builder *InitCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   initUseConstant,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	command.Flags().String(initWorktreeRootFlagName, "", initWorktreeRootFlagDescription)
	command.Flags().String(initGitDirsRootFlagName, "", initGitDirsRootFlagDescription)
	if markError := command.MarkFlagRequired(initWorktreeRootFlagName); markError != nil {
		return nil, markError
	}
	if markError := command.MarkFlagRequired(initGitDirsRootFlagName); markError != nil {
		return nil, markError
	}
	return command, nil
}

func (builder *InitCommandBuilder) run(command *cobra.Command, _ []string) error {
	worktreeRoot, _ := command.Flags().GetString(initWorktreeRootFlagName)
	gitDirectoriesRoot, _ := command.Flags().GetString(initGitDirsRootFlagName)

	initial, manifestError := manifest.NewManifest(manifest.Settings{WorktreeRoot: worktreeRoot, GitDirectoriesRoot: gitDirectoriesRoot})
	if manifestError != nil {
		return manifestError
	}

	store, storeError := resolveStore(builder.StoreProvider)
	if storeError != nil {
		return storeError
	}
	manifestDirectory := filepath.Dir(store.Location())
	if mkdirError := os.MkdirAll(manifestDirectory, initManifestDirectoryPermissions); mkdirError != nil {
		return fmt.Errorf(createManifestDirectoryTemplate, manifestDirectory, mkdirError)
	}

	return withManifestLock(command.Context(), store, resolveLogger(builder.LoggerProvider), func(executionContext context.Context) error {
		_, loadError := store.Load(executionContext)
		switch {
		case loadError == nil, errors.Is(loadError, manifest.ErrManifestCorrupt):
			return fmt.Errorf(manifestExistsErrorTemplate, ErrManifestExists, store.Location())
		case !errors.Is(loadError, manifest.ErrManifestNotFound):
			return loadError
		}
		if saveError := store.Save(executionContext, initial); saveError != nil {
			return saveError
		}
		shared.NewWriterReporter(command.OutOrStdout()).Printf(initializedLineTemplateConstant, store.Location())
		return nil
	})
}
