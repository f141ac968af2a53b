package layout_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitsplit/internal/layout"
	"github.com/temirov/gitsplit/internal/repos/filesystem"
)

const (
	testDirectoryPermissions = 0o755
	testFilePermissions      = 0o644
	gitMarkerName            = ".git"
)

type structureSetup func(testInstance *testing.T, boundaryRoot string)

func makeDirectories(testInstance *testing.T, boundaryRoot string, relativePaths ...string) {
	testInstance.Helper()
	for _, relativePath := range relativePaths {
		require.NoError(testInstance, os.MkdirAll(filepath.Join(boundaryRoot, relativePath), testDirectoryPermissions))
	}
}

func writeFile(testInstance *testing.T, path string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(path), testDirectoryPermissions))
	require.NoError(testInstance, os.WriteFile(path, []byte(content), testFilePermissions))
}

func makeMetadataDirectory(testInstance *testing.T, metadataPath string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Join(metadataPath, "objects"), testDirectoryPermissions))
	require.NoError(testInstance, os.MkdirAll(filepath.Join(metadataPath, "refs"), testDirectoryPermissions))
	writeFile(testInstance, filepath.Join(metadataPath, "HEAD"), "ref: refs/heads/main\n")
}

func TestStructureValidatorInspect(testInstance *testing.T) {
	testCases := []struct {
		name            string
		candidate       string
		setup           structureSetup
		expectedReason  string
		expectedOffense string
	}{
		{
			name:      "missing ancestors are accepted",
			candidate: "team/project/app",
			setup:     func(*testing.T, string) {},
		},
		{
			name:      "plain directory ancestors are accepted",
			candidate: "team/project/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				makeDirectories(testInstance, boundaryRoot, "team/project")
			},
		},
		{
			name:      "direct child of boundary has no ancestors to check",
			candidate: "app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				makeDirectories(testInstance, boundaryRoot, gitMarkerName)
			},
		},
		{
			name:      "candidate itself may already be a repository",
			candidate: "team/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				makeDirectories(testInstance, boundaryRoot, "team/app/.git")
			},
		},
		{
			name:      "ancestor working tree with git directory is rejected",
			candidate: "team/project/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				makeDirectories(testInstance, boundaryRoot, "team/.git")
			},
			expectedReason:  layout.ReasonNestedWorkingTree,
			expectedOffense: "team",
		},
		{
			name:      "ancestor working tree with gitdir file is rejected",
			candidate: "team/project/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				writeFile(testInstance, filepath.Join(boundaryRoot, "team", "project", gitMarkerName), "gitdir: /elsewhere\n")
			},
			expectedReason:  layout.ReasonNestedWorkingTree,
			expectedOffense: "team/project",
		},
		{
			name:      "ancestor file is rejected",
			candidate: "team/project/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				writeFile(testInstance, filepath.Join(boundaryRoot, "team"), "not a directory")
			},
			expectedReason:  layout.ReasonNotDirectory,
			expectedOffense: "team",
		},
		{
			name:      "file below existing directories is named",
			candidate: "team/project/nested/deeper/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				writeFile(testInstance, filepath.Join(boundaryRoot, "team", "project"), "not a directory")
			},
			expectedReason:  layout.ReasonNotDirectory,
			expectedOffense: "team/project",
		},
		{
			name:      "ancestor metadata directory is rejected",
			candidate: "team/project/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				makeMetadataDirectory(testInstance, filepath.Join(boundaryRoot, "team"))
			},
			expectedReason:  layout.ReasonNestedMetadata,
			expectedOffense: "team",
		},
		{
			name:      "ancestor symbolic link is rejected",
			candidate: "team/project/app",
			setup: func(testInstance *testing.T, boundaryRoot string) {
				targetDirectory := testInstance.TempDir()
				require.NoError(testInstance, os.Symlink(targetDirectory, filepath.Join(boundaryRoot, "team")))
			},
			expectedReason:  layout.ReasonSymbolicLink,
			expectedOffense: "team",
		},
		{
			name:            "candidate outside boundary is rejected",
			candidate:       "../outside/app",
			setup:           func(*testing.T, string) {},
			expectedReason:  layout.ReasonOutsideBoundary,
			expectedOffense: "",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			boundaryRoot := filepath.Join(testInstance.TempDir(), "root")
			require.NoError(testInstance, os.MkdirAll(boundaryRoot, testDirectoryPermissions))
			testCase.setup(testInstance, boundaryRoot)

			validator := layout.NewStructureValidator(filesystem.OSFileSystem{})
			candidatePath := filepath.Join(boundaryRoot, filepath.FromSlash(testCase.candidate))
			inspectError := validator.Inspect(candidatePath, boundaryRoot)

			if len(testCase.expectedReason) == 0 {
				require.NoError(testInstance, inspectError)
				require.True(testInstance, validator.Validate(candidatePath, boundaryRoot))
				return
			}

			require.False(testInstance, validator.Validate(candidatePath, boundaryRoot))
			var violation *layout.StructureViolation
			require.True(testInstance, errors.As(inspectError, &violation))
			require.Equal(testInstance, testCase.expectedReason, violation.Reason)
			if len(testCase.expectedOffense) > 0 {
				require.Equal(testInstance, filepath.Join(boundaryRoot, filepath.FromSlash(testCase.expectedOffense)), violation.OffendingPath)
			}
			require.Contains(testInstance, violation.Error(), testCase.expectedReason)
		})
	}
}

func TestStructureValidatorRejectsAnyRepositoryAncestor(testInstance *testing.T) {
	segments := []string{"alpha", "beta", "gamma", "delta"}
	candidateRelative := filepath.Join(append(append([]string{}, segments...), "leaf")...)

	for depth := 0; depth <= len(segments); depth++ {
		boundaryRoot := testInstance.TempDir()
		validator := layout.NewStructureValidator(filesystem.OSFileSystem{})
		candidatePath := filepath.Join(boundaryRoot, candidateRelative)

		if depth == len(segments) {
			makeDirectories(testInstance, boundaryRoot, filepath.Join(segments...))
			require.True(testInstance, validator.Validate(candidatePath, boundaryRoot))
			continue
		}

		repositoryAncestor := filepath.Join(segments[:depth+1]...)
		makeDirectories(testInstance, boundaryRoot, filepath.Join(segments...), filepath.Join(repositoryAncestor, gitMarkerName))
		require.False(testInstance, validator.Validate(candidatePath, boundaryRoot), repositoryAncestor)
	}
}

func TestReadGitFile(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	fileSystem := filesystem.OSFileSystem{}
	gitFilePath := filepath.Join(workingDirectory, gitMarkerName)

	writeFile(testInstance, gitFilePath, "gitdir: ../metadata/app\n")
	resolvedPath, readError := layout.ReadGitFile(fileSystem, gitFilePath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, filepath.Join(filepath.Dir(workingDirectory), "metadata", "app"), resolvedPath)

	writeFile(testInstance, gitFilePath, string(layout.GitFileContent("/srv/metadata/app")))
	resolvedPath, readError = layout.ReadGitFile(fileSystem, gitFilePath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, filepath.Clean("/srv/metadata/app"), resolvedPath)

	writeFile(testInstance, gitFilePath, "garbage\n")
	_, readError = layout.ReadGitFile(fileSystem, gitFilePath)
	require.ErrorIs(testInstance, readError, layout.ErrMalformedGitFile)
}

func TestInspectMarkerAndMetadataDetection(testInstance *testing.T) {
	fileSystem := filesystem.OSFileSystem{}
	rootDirectory := testInstance.TempDir()

	markerKind, inspectError := layout.InspectMarker(fileSystem, rootDirectory)
	require.NoError(testInstance, inspectError)
	require.Equal(testInstance, layout.MarkerAbsent, markerKind)

	makeDirectories(testInstance, rootDirectory, gitMarkerName)
	markerKind, inspectError = layout.InspectMarker(fileSystem, rootDirectory)
	require.NoError(testInstance, inspectError)
	require.Equal(testInstance, layout.MarkerDirectory, markerKind)

	metadataPath := filepath.Join(rootDirectory, "metadata")
	require.False(testInstance, layout.IsMetadataDirectory(fileSystem, metadataPath))
	makeMetadataDirectory(testInstance, metadataPath)
	require.True(testInstance, layout.IsMetadataDirectory(fileSystem, metadataPath))
}

func TestContains(testInstance *testing.T) {
	require.True(testInstance, layout.Contains("/srv/root", "/srv/root"))
	require.True(testInstance, layout.Contains("/srv/root", "/srv/root/a/b"))
	require.False(testInstance, layout.Contains("/srv/root", "/srv/rootless"))
	require.False(testInstance, layout.Contains("/srv/root", "/srv"))
	require.True(testInstance, layout.Contains("/srv/root", "/srv/root/..data"))
}
