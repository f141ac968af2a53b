package repos

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/gitsplit/internal/reconcile"
)

const (
	listUseConstant            = "list [filter]"
	listShortDescription       = "List the repositories declared in the manifest"
	listLongDescription        = "list prints each declared repository path and URL. An optional filter fuzzy-matches paths; --verbose adds the metadata directory of each stored repository."
	listVerboseFlagName        = "verbose"
	listVerboseFlagShorthand   = "v"
	listVerboseFlagDescription = "Show the metadata directory of each repository"
)

// ListCommandBuilder assembles the list command.
type ListCommandBuilder struct {
	EngineProvider EngineProvider
}

// Build constructs the list command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   listUseConstant,
		Short: listShortDescription,
		Long:  listLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.run,
	}
	command.Flags().BoolP(listVerboseFlagName, listVerboseFlagShorthand, false, listVerboseFlagDescription)
	return command, nil
}

func (builder *ListCommandBuilder) run(command *cobra.Command, arguments []string) error {
	verbose, _ := command.Flags().GetBool(listVerboseFlagName)

	filter := ""
	if len(arguments) > 0 {
		filter = strings.TrimSpace(arguments[0])
	}

	engine, engineError := resolveEngine(builder.EngineProvider, command)
	if engineError != nil {
		return engineError
	}
	return engine.List(command.Context(), reconcile.ListOptions{Verbose: verbose, Filter: filter})
}
