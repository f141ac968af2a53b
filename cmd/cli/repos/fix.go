package repos

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/reconcile"
)

const (
	fixUseConstant      = "fix"
	fixShortDescription = "Clone every unstored repository into the split layout"
	fixLongDescription  = "fix clones each unstored repository with its metadata under git_dirs_root and its working tree under worktree_root. Failures are reported per repository; a layout violation aborts the run."
)

// FixCommandBuilder assembles the fix command.
type FixCommandBuilder struct {
	LoggerProvider LoggerProvider
	EngineProvider EngineProvider
	StoreProvider  StoreProvider
}

// Build constructs the fix command.
func (builder *FixCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   fixUseConstant,
		Short: fixShortDescription,
		Long:  fixLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *FixCommandBuilder) run(command *cobra.Command, _ []string) error {
	return mutatingRun(command, builder.EngineProvider, builder.StoreProvider, builder.LoggerProvider, func(executionContext context.Context, engine *reconcile.Engine) error {
		_, fixError := engine.Fix(executionContext)
		return fixError
	})
}
