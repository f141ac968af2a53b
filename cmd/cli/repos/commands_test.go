package repos_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitsplit/cmd/cli/repos"
	"github.com/temirov/gitsplit/internal/gitrepo/testsupport"
	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/reconcile"
	"github.com/temirov/gitsplit/internal/repos/filesystem"
	"github.com/temirov/gitsplit/internal/repos/shared"
	"github.com/temirov/gitsplit/internal/splitclone"
	"github.com/temirov/gitsplit/internal/utils"
)

const (
	alphaURL = "https://example.com/alpha.git"
	betaURL  = "https://example.com/beta.git"
)

type commandHarness struct {
	stub         *testsupport.RepositoryManagerStub
	manifestPath string
	worktreeRoot string
	gitDirsRoot  string
	baseDir      string
}

func newCommandHarness(testInstance *testing.T) *commandHarness {
	testInstance.Helper()
	baseDirectory := testInstance.TempDir()
	return &commandHarness{
		stub:         testsupport.NewRepositoryManagerStub(),
		manifestPath: filepath.Join(baseDirectory, "manifest", "repositories.yaml"),
		worktreeRoot: filepath.Join(baseDirectory, "trees"),
		gitDirsRoot:  filepath.Join(baseDirectory, "gitdirs"),
		baseDir:      baseDirectory,
	}
}

func (harness *commandHarness) openStore() (manifest.Store, error) {
	return manifest.OpenStore(harness.manifestPath)
}

func (harness *commandHarness) buildEngine(command *cobra.Command) (*reconcile.Engine, error) {
	store, storeError := harness.openStore()
	if storeError != nil {
		return nil, storeError
	}
	operator, operatorError := splitclone.NewOperator(harness.stub, filesystem.OSFileSystem{}, utils.NewULIDGenerator(), nil, 0)
	if operatorError != nil {
		return nil, operatorError
	}
	return reconcile.NewEngine(reconcile.Dependencies{
		Store:        store,
		Manager:      harness.stub,
		Materializer: operator,
		Reporter:     shared.NewWriterReporter(command.OutOrStdout()),
	})
}

func (harness *commandHarness) execute(testInstance *testing.T, arguments ...string) (string, error) {
	testInstance.Helper()
	builder := repos.CommandSetBuilder{
		EngineProvider: harness.buildEngine,
		StoreProvider:  harness.openStore,
	}
	commands, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	rootCommand := &cobra.Command{Use: "gitsplit", SilenceUsage: true, SilenceErrors: true}
	rootCommand.AddCommand(commands...)
	output := &bytes.Buffer{}
	rootCommand.SetOut(output)
	rootCommand.SetErr(output)
	rootCommand.SetArgs(arguments)
	executionError := rootCommand.ExecuteContext(context.Background())
	return output.String(), executionError
}

func (harness *commandHarness) initialize(testInstance *testing.T) {
	testInstance.Helper()
	_, initError := harness.execute(testInstance, "init", "--worktree-root", harness.worktreeRoot, "--git-dirs-root", harness.gitDirsRoot)
	require.NoError(testInstance, initError)
}

func (harness *commandHarness) declaredPaths(testInstance *testing.T) []string {
	testInstance.Helper()
	store, storeError := harness.openStore()
	require.NoError(testInstance, storeError)
	loaded, loadError := store.Load(context.Background())
	require.NoError(testInstance, loadError)
	paths := []string{}
	for _, record := range loaded.Records() {
		paths = append(paths, record.Path)
	}
	return paths
}

func TestCommandSetBuildsEveryCommand(testInstance *testing.T) {
	builder := repos.CommandSetBuilder{}
	commands, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	names := make([]string, 0, len(commands))
	for _, command := range commands {
		names = append(names, command.Name())
	}
	require.Equal(testInstance, []string{"list", "check", "fix", "clone", "update", "remove", "init", "convert"}, names)
}

func TestInitCreatesManifestOnce(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)

	output, initError := harness.execute(testInstance, "init", "--worktree-root", harness.worktreeRoot, "--git-dirs-root", harness.gitDirsRoot)
	require.NoError(testInstance, initError)
	require.Contains(testInstance, output, "initialized "+harness.manifestPath)
	require.Empty(testInstance, harness.declaredPaths(testInstance))

	_, secondError := harness.execute(testInstance, "init", "--worktree-root", harness.worktreeRoot, "--git-dirs-root", harness.gitDirsRoot)
	require.ErrorIs(testInstance, secondError, repos.ErrManifestExists)
}

func TestInitRejectsInvalidRoots(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
	}{
		{name: "missing_flags", arguments: []string{"init"}},
		{name: "relative_root", arguments: []string{"init", "--worktree-root", "relative/trees", "--git-dirs-root", "/tmp/gitsplit-gitdirs"}},
		{name: "nested_roots", arguments: []string{"init", "--worktree-root", "/tmp/gitsplit", "--git-dirs-root", "/tmp/gitsplit/gitdirs"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			harness := newCommandHarness(testInstance)
			_, initError := harness.execute(testInstance, testCase.arguments...)
			require.Error(testInstance, initError)
			require.NoFileExists(testInstance, harness.manifestPath)
		})
	}
}

func TestCloneCheckFixCommands(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.initialize(testInstance)

	cloneOutput, cloneError := harness.execute(testInstance, "clone", "proj/alpha", alphaURL)
	require.NoError(testInstance, cloneError)
	require.Contains(testInstance, cloneOutput, "cloned proj/alpha "+alphaURL)
	require.Equal(testInstance, []string{"proj/alpha"}, harness.declaredPaths(testInstance))

	_, duplicateError := harness.execute(testInstance, "clone", "proj/alpha", betaURL)
	require.ErrorIs(testInstance, duplicateError, reconcile.ErrAlreadyExists)

	require.NoError(testInstance, os.RemoveAll(filepath.Join(harness.gitDirsRoot, "proj", "alpha")))
	require.NoError(testInstance, os.RemoveAll(filepath.Join(harness.worktreeRoot, "proj", "alpha")))

	checkOutput, checkError := harness.execute(testInstance, "check")
	require.NoError(testInstance, checkError)
	require.Contains(testInstance, checkOutput, "proj/alpha unstored")
	require.Contains(testInstance, checkOutput, "1 of 1 repositories unstored")

	fixOutput, fixError := harness.execute(testInstance, "fix")
	require.NoError(testInstance, fixError)
	require.Contains(testInstance, fixOutput, "fixed proj/alpha")

	checkOutput, checkError = harness.execute(testInstance, "check")
	require.NoError(testInstance, checkError)
	require.Contains(testInstance, checkOutput, "proj/alpha stored")
	require.FileExists(testInstance, manifest.LockPath(harness.manifestPath))
}

func TestFixReportsCloneFailures(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.initialize(testInstance)
	_, cloneError := harness.execute(testInstance, "clone", "beta", betaURL)
	require.NoError(testInstance, cloneError)
	require.NoError(testInstance, os.RemoveAll(filepath.Join(harness.gitDirsRoot, "beta")))
	require.NoError(testInstance, os.RemoveAll(filepath.Join(harness.worktreeRoot, "beta")))
	harness.stub.FailClone(betaURL, false)

	fixOutput, fixError := harness.execute(testInstance, "fix")
	require.ErrorIs(testInstance, fixError, splitclone.ErrCloneFailed)
	require.Contains(testInstance, fixOutput, "failed beta")
}

func TestUpdateAndRemoveCommands(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.initialize(testInstance)
	harness.stub.SeedRepository(testInstance, filepath.Join(harness.worktreeRoot, "found"), filepath.Join(harness.gitDirsRoot, "found"), alphaURL)
	harness.stub.SeedRepository(testInstance, filepath.Join(harness.worktreeRoot, "stray"), filepath.Join(harness.gitDirsRoot, "stray"), betaURL)

	updateOutput, updateError := harness.execute(testInstance, "update")
	require.NoError(testInstance, updateError)
	require.Contains(testInstance, updateOutput, "found")
	require.Equal(testInstance, []string{"found", "stray"}, harness.declaredPaths(testInstance))

	store, storeError := harness.openStore()
	require.NoError(testInstance, storeError)
	loaded, loadError := store.Load(context.Background())
	require.NoError(testInstance, loadError)
	trimmed, trimError := manifest.FromRecords(loaded.Settings, []manifest.RepositoryRecord{{Path: "found", URL: alphaURL}})
	require.NoError(testInstance, trimError)
	require.NoError(testInstance, store.Save(context.Background(), trimmed))

	dryRunOutput, dryRunError := harness.execute(testInstance, "remove", "--dry-run")
	require.NoError(testInstance, dryRunError)
	require.Contains(testInstance, dryRunOutput, "would remove stray")
	require.DirExists(testInstance, filepath.Join(harness.worktreeRoot, "stray"))

	removeOutput, removeError := harness.execute(testInstance, "remove")
	require.NoError(testInstance, removeError)
	require.Contains(testInstance, removeOutput, "removed stray")
	require.NoDirExists(testInstance, filepath.Join(harness.worktreeRoot, "stray"))
	require.NoDirExists(testInstance, filepath.Join(harness.gitDirsRoot, "stray"))
	require.DirExists(testInstance, filepath.Join(harness.worktreeRoot, "found"))
}

func TestListCommandFiltersAndVerbose(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.initialize(testInstance)
	_, cloneError := harness.execute(testInstance, "clone", "proj/alpha", alphaURL)
	require.NoError(testInstance, cloneError)
	_, cloneError = harness.execute(testInstance, "clone", "tools/beta", betaURL)
	require.NoError(testInstance, cloneError)

	listOutput, listError := harness.execute(testInstance, "list", "tbt")
	require.NoError(testInstance, listError)
	require.Equal(testInstance, "tools/beta "+betaURL+"\n", listOutput)

	verboseOutput, verboseError := harness.execute(testInstance, "list", "-v")
	require.NoError(testInstance, verboseError)
	require.Contains(testInstance, verboseOutput, filepath.Join(harness.gitDirsRoot, "proj", "alpha"))

	_, argumentsError := harness.execute(testInstance, "list", "one", "two")
	require.Error(testInstance, argumentsError)
}

func TestConvertCommand(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.initialize(testInstance)
	_, cloneError := harness.execute(testInstance, "clone", "proj/alpha", alphaURL)
	require.NoError(testInstance, cloneError)

	for _, destinationName := range []string{"repositories.csv", "repositories.toml", "repositories.json", "repositories.db"} {
		testInstance.Run(destinationName, func(testInstance *testing.T) {
			destinationPath := filepath.Join(harness.baseDir, destinationName)

			output, convertError := harness.execute(testInstance, "convert", destinationPath)
			require.NoError(testInstance, convertError)
			require.Contains(testInstance, output, "(1 repositories)")

			destination, openError := manifest.OpenStore(destinationPath)
			require.NoError(testInstance, openError)
			converted, loadError := destination.Load(context.Background())
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, []manifest.RepositoryRecord{{Path: "proj/alpha", URL: alphaURL}}, converted.Records())

			_, existsError := harness.execute(testInstance, "convert", destinationPath)
			require.ErrorIs(testInstance, existsError, repos.ErrDestinationExists)

			_, forcedError := harness.execute(testInstance, "convert", "--force", destinationPath)
			require.NoError(testInstance, forcedError)
		})
	}

	_, sameError := harness.execute(testInstance, "convert", "--force", harness.manifestPath)
	require.ErrorIs(testInstance, sameError, repos.ErrSameDestination)

	_, formatError := harness.execute(testInstance, "convert", filepath.Join(harness.baseDir, "repositories.ini"))
	require.ErrorIs(testInstance, formatError, manifest.ErrUnsupportedFormat)
}

func TestCommandsRequireProviders(testInstance *testing.T) {
	builder := repos.FixCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetArgs([]string{})
	command.SetOut(&bytes.Buffer{})
	command.SilenceUsage = true
	command.SilenceErrors = true
	require.ErrorIs(testInstance, command.ExecuteContext(context.Background()), reconcile.ErrEngineNotConfigured)
}
