package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gitsplit/cmd/cli/repos"
	"github.com/temirov/gitsplit/internal/gitrepo"
	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/reconcile"
	"github.com/temirov/gitsplit/internal/repos/dependencies"
	"github.com/temirov/gitsplit/internal/repos/shared"
	"github.com/temirov/gitsplit/internal/splitclone"
	"github.com/temirov/gitsplit/internal/ui"
	"github.com/temirov/gitsplit/internal/utils"
)

const (
	applicationNameConstant                 = "gitsplit"
	applicationShortDescriptionConstant     = "Keep a repository manifest and a split worktree layout in sync"
	applicationLongDescriptionConstant      = "gitsplit reconciles a manifest of repositories with working trees under worktree_root whose git metadata lives under git_dirs_root."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	manifestFlagNameConstant                = "manifest"
	manifestFlagShorthandConstant           = "m"
	manifestFlagUsageConstant               = "Override the manifest location; the extension selects the format."
	commonLogLevelConfigKeyConstant         = "common.log_level"
	commonLogFormatConfigKeyConstant        = "common.log_format"
	manifestPathConfigKeyConstant           = "manifest.path"
	gitBackendConfigKeyConstant             = "git.backend"
	gitCloneTimeoutConfigKeyConstant        = "git.clone_timeout"
	defaultManifestPathConstant             = "repositories.yaml"
	defaultCloneTimeoutConstant             = 10 * time.Minute
	environmentPrefixConstant               = "GITSPLIT"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationManifestFieldConstant      = "manifest"
	configurationBackendFieldConstant       = "git_backend"
	logFieldRunIdentifierConstant           = "run_id"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	runIdentifierErrorTemplateConstant      = "unable to allocate run identifier: %w"
	manifestPathErrorTemplateConstant       = "invalid manifest path: %w"
)

// ApplicationConfiguration describes the persisted configuration for the CLI.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration   `mapstructure:"common"`
	Manifest ApplicationManifestConfiguration `mapstructure:"manifest"`
	Git      ApplicationGitConfiguration      `mapstructure:"git"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationManifestConfiguration locates the manifest.
type ApplicationManifestConfiguration struct {
	Path string `mapstructure:"path"`
}

// ApplicationGitConfiguration selects the git backend and bounds each clone.
type ApplicationGitConfiguration struct {
	Backend      string        `mapstructure:"backend"`
	CloneTimeout time.Duration `mapstructure:"clone_timeout"`
}

// Application wires the Cobra root command, configuration loader, structured logger and reconciliation engine.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	identifiers            *utils.ULIDGenerator
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	manifestFlagValue      string
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		utils.ApplicationSearchPaths(applicationNameConstant),
	)
	embeddedConfiguration, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	configurationLoader.SetEmbeddedConfiguration(embeddedConfiguration, embeddedConfigurationType)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		identifiers:            utils.NewULIDGenerator(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVarP(&application.manifestFlagValue, manifestFlagNameConstant, manifestFlagShorthandConstant, "", manifestFlagUsageConstant)

	commandSetBuilder := repos.CommandSetBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		EngineProvider: application.buildEngine,
		StoreProvider:  application.openStore,
	}
	commands, buildError := commandSetBuilder.Build()
	if buildError == nil {
		cobraCommand.AddCommand(commands...)
	}

	application.rootCommand = cobraCommand

	return application
}

// RootCommand exposes the Cobra root command.
func (application *Application) RootCommand() *cobra.Command {
	return application.rootCommand
}

// Configuration returns the configuration resolved by the last command run.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

// Execute runs the configured Cobra command hierarchy and flushes the logger.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := utils.SyncLogger(application.logger); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
		manifestPathConfigKeyConstant:    defaultManifestPathConstant,
		gitBackendConfigKeyConstant:      gitrepo.BackendLibrary,
		gitCloneTimeoutConfigKeyConstant: defaultCloneTimeoutConstant.String(),
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, manifestFlagNameConstant) {
		application.configuration.Manifest.Path = application.manifestFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	runIdentifier, identifierError := application.identifiers.NewIdentifier()
	if identifierError != nil {
		return fmt.Errorf(runIdentifierErrorTemplateConstant, identifierError)
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationManifestFieldConstant, application.configuration.Manifest.Path),
		zap.String(configurationBackendFieldConstant, application.configuration.Git.Backend),
		zap.String(logFieldRunIdentifierConstant, runIdentifier),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed)
		updatedContext = application.commandContextAccessor.WithRunIdentifier(updatedContext, runIdentifier)
		command.SetContext(updatedContext)
	}

	return nil
}

func (application *Application) openStore() (manifest.Store, error) {
	manifestPath, expandError := manifest.ExpandHomeDirectory(strings.TrimSpace(application.configuration.Manifest.Path))
	if expandError != nil {
		return nil, fmt.Errorf(manifestPathErrorTemplateConstant, expandError)
	}
	return manifest.OpenStore(manifestPath)
}

func (application *Application) buildEngine(command *cobra.Command) (*reconcile.Engine, error) {
	store, storeError := application.openStore()
	if storeError != nil {
		return nil, storeError
	}

	runIdentifier, _ := application.commandContextAccessor.RunIdentifier(command.Context())
	runLogger := application.logger.With(zap.String(logFieldRunIdentifierConstant, runIdentifier))

	manager, managerError := dependencies.ResolveRepositoryManager(nil, application.configuration.Git.Backend, nil, runLogger)
	if managerError != nil {
		return nil, managerError
	}

	fileSystem := dependencies.ResolveFileSystem(nil)
	operator, operatorError := splitclone.NewOperator(manager, fileSystem, application.identifiers, runLogger, application.configuration.Git.CloneTimeout)
	if operatorError != nil {
		return nil, operatorError
	}

	output := command.OutOrStdout()

	return reconcile.NewEngine(reconcile.Dependencies{
		Store:         store,
		Manager:       manager,
		Materializer:  operator,
		FileSystem:    fileSystem,
		Reporter:      shared.NewWriterReporter(output),
		Renderer:      statusRendererFor(output),
		Logger:        application.logger,
		RunIdentifier: runIdentifier,
	})
}

func statusRendererFor(output io.Writer) *ui.StatusStyler {
	if outputFile, isFile := output.(*os.File); isFile {
		return ui.NewTerminalStatusStyler(outputFile)
	}
	return ui.NewStatusStyler(false)
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
