package repos

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/reconcile"
)

const (
	removeUseConstant           = "remove"
	removeShortDescription      = "Delete local repositories the manifest does not declare"
	removeLongDescription       = "remove deletes the working tree and metadata directory of every discovered repository that is not declared. Declared repositories and their metadata are never touched."
	removeDryRunFlagName        = "dry-run"
	removeDryRunFlagDescription = "Print what would be removed without deleting anything"
)

// RemoveCommandBuilder assembles the remove command.
type RemoveCommandBuilder struct {
	LoggerProvider LoggerProvider
	EngineProvider EngineProvider
	StoreProvider  StoreProvider
}

// Build constructs the remove command.
func (builder *RemoveCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   removeUseConstant,
		Short: removeShortDescription,
		Long:  removeLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	command.Flags().Bool(removeDryRunFlagName, false, removeDryRunFlagDescription)
	return command, nil
}

func (builder *RemoveCommandBuilder) run(command *cobra.Command, _ []string) error {
	dryRun, _ := command.Flags().GetBool(removeDryRunFlagName)
	return mutatingRun(command, builder.EngineProvider, builder.StoreProvider, builder.LoggerProvider, func(executionContext context.Context, engine *reconcile.Engine) error {
		_, removeError := engine.Remove(executionContext, reconcile.RemoveOptions{DryRun: dryRun})
		return removeError
	})
}
