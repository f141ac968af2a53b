package repos

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/reconcile"
)

const (
	cloneUseConstant      = "clone <path> <url>"
	cloneShortDescription = "Clone a new repository and declare it in the manifest"
	cloneLongDescription  = "clone materializes the repository at <path> in the split layout and then records it in the manifest. A path that is already declared is rejected."
)

// CloneCommandBuilder assembles the clone command.
type CloneCommandBuilder struct {
	LoggerProvider LoggerProvider
	EngineProvider EngineProvider
	StoreProvider  StoreProvider
}

// Build constructs the clone command.
func (builder *CloneCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   cloneUseConstant,
		Short: cloneShortDescription,
		Long:  cloneLongDescription,
		Args:  cobra.ExactArgs(2),
		RunE:  builder.run,
	}, nil
}

func (builder *CloneCommandBuilder) run(command *cobra.Command, arguments []string) error {
	repositoryPath := arguments[0]
	remoteURL := arguments[1]
	return mutatingRun(command, builder.EngineProvider, builder.StoreProvider, builder.LoggerProvider, func(executionContext context.Context, engine *reconcile.Engine) error {
		return engine.CloneNew(executionContext, repositoryPath, remoteURL)
	})
}
