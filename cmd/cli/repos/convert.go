package repos

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/repos/shared"
)

const (
	convertUseConstant              = "convert <destination>"
	convertShortDescription         = "Rewrite the manifest in another format"
	convertLongDescription          = "convert loads the manifest and saves it to <destination>, choosing the format from the destination extension (.csv, .yaml, .toml, .json or .db)."
	convertForceFlagName            = "force"
	convertForceFlagDescription     = "Replace an existing destination"
	convertedLineTemplateConstant   = "converted %s to %s (%d repositories)\n"
	destinationExistsErrorTemplate  = "%w: %s (use --force to replace it)"
	inspectDestinationErrorTemplate = "inspect destination %s: %w"
	sameDestinationErrorTemplate    = "%w: destination %s is the manifest itself"
)

// ErrDestinationExists indicates convert would overwrite a file without --force.
var ErrDestinationExists = errors.New("destination already exists")

// ErrSameDestination indicates convert was pointed at the manifest it reads.
var ErrSameDestination = errors.New("invalid conversion")

// ConvertCommandBuilder assembles the convert command.
type ConvertCommandBuilder struct {
	LoggerProvider LoggerProvider
	StoreProvider  StoreProvider
}

// Build constructs the convert command.
func (builder *ConvertCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   convertUseConstant,
		Short: convertShortDescription,
		Long:  convertLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}
	command.Flags().Bool(convertForceFlagName, false, convertForceFlagDescription)
	return command, nil
}

func (builder *ConvertCommandBuilder) run(command *cobra.Command, arguments []string) error {
	force, _ := command.Flags().GetBool(convertForceFlagName)

	destinationPath, expandError := manifest.ExpandHomeDirectory(arguments[0])
	if expandError != nil {
		return expandError
	}
	destination, destinationError := manifest.OpenStore(destinationPath)
	if destinationError != nil {
		return destinationError
	}

	source, sourceError := resolveStore(builder.StoreProvider)
	if sourceError != nil {
		return sourceError
	}
	if sameFile(source.Location(), destination.Location()) {
		return fmt.Errorf(sameDestinationErrorTemplate, ErrSameDestination, destination.Location())
	}

	if !force {
		_, statError := os.Stat(destination.Location())
		switch {
		case statError == nil:
			return fmt.Errorf(destinationExistsErrorTemplate, ErrDestinationExists, destination.Location())
		case !errors.Is(statError, fs.ErrNotExist):
			return fmt.Errorf(inspectDestinationErrorTemplate, destination.Location(), statError)
		}
	}

	return withManifestLock(command.Context(), source, resolveLogger(builder.LoggerProvider), func(executionContext context.Context) error {
		loaded, loadError := source.Load(executionContext)
		if loadError != nil {
			return loadError
		}
		if saveError := destination.Save(executionContext, loaded); saveError != nil {
			return saveError
		}
		shared.NewWriterReporter(command.OutOrStdout()).Printf(convertedLineTemplateConstant, source.Location(), destination.Location(), loaded.Len())
		return nil
	})
}

func sameFile(firstPath string, secondPath string) bool {
	firstInfo, firstError := os.Stat(firstPath)
	secondInfo, secondError := os.Stat(secondPath)
	if firstError != nil || secondError != nil {
		return firstPath == secondPath
	}
	return os.SameFile(firstInfo, secondInfo)
}
