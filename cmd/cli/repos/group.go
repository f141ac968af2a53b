package repos

import "github.com/spf13/cobra"

// CommandSetBuilder assembles every manifest command sharing one set of providers.
type CommandSetBuilder struct {
	LoggerProvider LoggerProvider
	EngineProvider EngineProvider
	StoreProvider  StoreProvider
}

// Build constructs the list, check, fix, clone, update, remove, init and convert commands.
func (builder *CommandSetBuilder) Build() ([]*cobra.Command, error) {
	commandBuilders := []interface {
		Build() (*cobra.Command, error)
	}{
		&ListCommandBuilder{EngineProvider: builder.EngineProvider},
		&CheckCommandBuilder{EngineProvider: builder.EngineProvider},
		&FixCommandBuilder{LoggerProvider: builder.LoggerProvider, EngineProvider: builder.EngineProvider, StoreProvider: builder.StoreProvider},
		&CloneCommandBuilder{LoggerProvider: builder.LoggerProvider, EngineProvider: builder.EngineProvider, StoreProvider: builder.StoreProvider},
		&UpdateCommandBuilder{LoggerProvider: builder.LoggerProvider, EngineProvider: builder.EngineProvider, StoreProvider: builder.StoreProvider},
		&RemoveCommandBuilder{LoggerProvider: builder.LoggerProvider, EngineProvider: builder.EngineProvider, StoreProvider: builder.StoreProvider},
		&InitCommandBuilder{LoggerProvider: builder.LoggerProvider, StoreProvider: builder.StoreProvider},
		&ConvertCommandBuilder{LoggerProvider: builder.LoggerProvider, StoreProvider: builder.StoreProvider},
	}

	commands := make([]*cobra.Command, 0, len(commandBuilders))
	for _, commandBuilder := range commandBuilders {
		command, buildError := commandBuilder.Build()
		if buildError != nil {
			return nil, buildError
		}
		commands = append(commands, command)
	}
	return commands, nil
}
