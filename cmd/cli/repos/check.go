package repos

import "github.com/spf13/cobra"

const (
	checkUseConstant      = "check"
	checkShortDescription = "Report declared repositories that are not stored locally"
	checkLongDescription  = "check resolves the metadata directory of every declared repository and reports each as stored or unstored without changing anything."
)

// CheckCommandBuilder assembles the check command.
type CheckCommandBuilder struct {
	EngineProvider EngineProvider
}

// Build constructs the check command.
func (builder *CheckCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   checkUseConstant,
		Short: checkShortDescription,
		Long:  checkLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *CheckCommandBuilder) run(command *cobra.Command, _ []string) error {
	engine, engineError := resolveEngine(builder.EngineProvider, command)
	if engineError != nil {
		return engineError
	}
	_, checkError := engine.Check(command.Context())
	return checkError
}
