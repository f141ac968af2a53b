package repos

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/reconcile"
)

const (
	updateUseConstant      = "update"
	updateShortDescription = "Declare every working tree found under worktree_root"
	updateLongDescription  = "update adds each discovered repository that the manifest does not declare. Declared entries are never dropped; a differing origin URL is reported and the declared URL kept."
)

// UpdateCommandBuilder assembles the update command.
type UpdateCommandBuilder struct {
	LoggerProvider LoggerProvider
	EngineProvider EngineProvider
	StoreProvider  StoreProvider
}

// Build constructs the update command.
func (builder *UpdateCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   updateUseConstant,
		Short: updateShortDescription,
		Long:  updateLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *UpdateCommandBuilder) run(command *cobra.Command, _ []string) error {
	return mutatingRun(command, builder.EngineProvider, builder.StoreProvider, builder.LoggerProvider, func(executionContext context.Context, engine *reconcile.Engine) error {
		_, updateError := engine.Update(executionContext)
		return updateError
	})
}
