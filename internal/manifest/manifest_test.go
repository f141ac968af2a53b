package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitsplit/internal/manifest"
)

const (
	testWorktreeRoot       = "/workspace/trees"
	testGitDirectoriesRoot = "/workspace/gitdirs"
	alphaURL               = "https://x/a.git"
	betaURL                = "https://x/b.git"
)

func testSettings() manifest.Settings {
	return manifest.Settings{WorktreeRoot: testWorktreeRoot, GitDirectoriesRoot: testGitDirectoriesRoot}
}

func TestFromRecordsOrdersAndDeduplicates(testInstance *testing.T) {
	loaded, loadError := manifest.FromRecords(testSettings(), []manifest.RepositoryRecord{
		{Path: "proj/b", URL: betaURL},
		{Path: "proj/a/", URL: alphaURL},
		{Path: "./proj/a", URL: " " + alphaURL + " "},
	})
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []manifest.RepositoryRecord{
		{Path: "proj/a", URL: alphaURL},
		{Path: "proj/b", URL: betaURL},
	}, loaded.Records())
	require.True(testInstance, loaded.Contains("proj/a"))
	require.False(testInstance, loaded.Contains("proj"))
}

func TestFromRecordsRejectsCorruption(testInstance *testing.T) {
	testCases := []struct {
		name     string
		settings manifest.Settings
		records  []manifest.RepositoryRecord
	}{
		{name: "missing_worktree_root", settings: manifest.Settings{GitDirectoriesRoot: testGitDirectoriesRoot}},
		{name: "missing_git_dirs_root", settings: manifest.Settings{WorktreeRoot: testWorktreeRoot}},
		{name: "relative_root", settings: manifest.Settings{WorktreeRoot: "trees", GitDirectoriesRoot: testGitDirectoriesRoot}},
		{name: "nested_roots", settings: manifest.Settings{WorktreeRoot: "/workspace", GitDirectoriesRoot: "/workspace/gitdirs"}},
		{name: "equal_roots", settings: manifest.Settings{WorktreeRoot: "/workspace", GitDirectoriesRoot: "/workspace/"}},
		{name: "blank_url", settings: testSettings(), records: []manifest.RepositoryRecord{{Path: "proj/a", URL: "  "}}},
		{name: "escaping_path", settings: testSettings(), records: []manifest.RepositoryRecord{{Path: "../a", URL: alphaURL}}},
		{name: "absolute_path", settings: testSettings(), records: []manifest.RepositoryRecord{{Path: "/a", URL: alphaURL}}},
		{name: "conflicting_duplicate", settings: testSettings(), records: []manifest.RepositoryRecord{
			{Path: "proj/a", URL: alphaURL},
			{Path: "proj/a", URL: betaURL},
		}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, loadError := manifest.FromRecords(testCase.settings, testCase.records)
			require.ErrorIs(testInstance, loadError, manifest.ErrManifestCorrupt)
		})
	}
}

func TestFromRecordsExpandsHomeDirectory(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	testInstance.Setenv("HOME", homeDirectory)

	loaded, loadError := manifest.NewManifest(manifest.Settings{WorktreeRoot: "~/trees", GitDirectoriesRoot: "~/gitdirs"})
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, filepath.Join(homeDirectory, "trees"), loaded.Settings.WorktreeRoot)
	require.Equal(testInstance, filepath.Join(homeDirectory, "gitdirs"), loaded.Settings.GitDirectoriesRoot)
	require.Zero(testInstance, loaded.Len())
}

func TestAddRepositoryRejectsDuplicatePath(testInstance *testing.T) {
	empty, newError := manifest.NewManifest(testSettings())
	require.NoError(testInstance, newError)

	withAlpha, addError := empty.AddRepository(manifest.RepositoryRecord{Path: "proj/a", URL: alphaURL})
	require.NoError(testInstance, addError)
	require.Zero(testInstance, empty.Len())
	require.Equal(testInstance, 1, withAlpha.Len())

	_, duplicateError := withAlpha.AddRepository(manifest.RepositoryRecord{Path: "proj/a/", URL: betaURL})
	require.ErrorIs(testInstance, duplicateError, manifest.ErrDuplicatePath)

	_, invalidError := withAlpha.AddRepository(manifest.RepositoryRecord{Path: "", URL: betaURL})
	require.ErrorIs(testInstance, invalidError, manifest.ErrInvalidPath)

	_, missingURLError := withAlpha.AddRepository(manifest.RepositoryRecord{Path: "proj/c", URL: ""})
	require.ErrorIs(testInstance, missingURLError, manifest.ErrMissingURL)
}

func TestReplaceRepositoryKeepsOrdering(testInstance *testing.T) {
	loaded, loadError := manifest.FromRecords(testSettings(), []manifest.RepositoryRecord{
		{Path: "a", URL: alphaURL},
		{Path: "c", URL: betaURL},
	})
	require.NoError(testInstance, loadError)

	inserted, insertError := loaded.ReplaceRepository(manifest.RepositoryRecord{Path: "b", URL: betaURL})
	require.NoError(testInstance, insertError)
	replaced, replaceError := inserted.ReplaceRepository(manifest.RepositoryRecord{Path: "a", URL: betaURL})
	require.NoError(testInstance, replaceError)

	require.Equal(testInstance, []manifest.RepositoryRecord{
		{Path: "a", URL: betaURL},
		{Path: "b", URL: betaURL},
		{Path: "c", URL: betaURL},
	}, replaced.Records())
	record, found := loaded.Lookup("a")
	require.True(testInstance, found)
	require.Equal(testInstance, alphaURL, record.URL)
}

func TestNormalizeRepositoryPath(testInstance *testing.T) {
	testCases := []struct {
		input    string
		expected string
		invalid  bool
	}{
		{input: "proj/a", expected: "proj/a"},
		{input: " proj//a/ ", expected: "proj/a"},
		{input: `proj\a`, expected: "proj/a"},
		{input: "proj/../a", expected: "a"},
		{input: "", invalid: true},
		{input: ".", invalid: true},
		{input: "..", invalid: true},
		{input: "../x", invalid: true},
		{input: "/abs", invalid: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.input, func(testInstance *testing.T) {
			normalized, normalizeError := manifest.NormalizeRepositoryPath(testCase.input)
			if testCase.invalid {
				require.ErrorIs(testInstance, normalizeError, manifest.ErrInvalidPath)
				return
			}
			require.NoError(testInstance, normalizeError)
			require.Equal(testInstance, testCase.expected, normalized)
		})
	}
}

func TestExpandHomeDirectoryLeavesOtherPaths(testInstance *testing.T) {
	expanded, expandError := manifest.ExpandHomeDirectory("/srv/~data")
	require.NoError(testInstance, expandError)
	require.Equal(testInstance, "/srv/~data", expanded)

	home, homeError := os.UserHomeDir()
	require.NoError(testInstance, homeError)
	expanded, expandError = manifest.ExpandHomeDirectory("~")
	require.NoError(testInstance, expandError)
	require.Equal(testInstance, home, expanded)
}
