package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/temirov/gitsplit/internal/repos/shared"
)

const (
	gitDirectoryRedirectPrefixConstant      = "gitdir:"
	metadataHeadFileNameConstant            = "HEAD"
	metadataObjectsDirectoryNameConstant    = "objects"
	metadataReferencesDirectoryNameConstant = "refs"
	parentDirectoryReferenceConstant        = ".."
	gitFileReadErrorTemplateConstant        = "unable to read git file %s: %w"
	gitFileMalformedErrorTemplateConstant   = "git file %s has no gitdir redirect"
)

// ErrMalformedGitFile indicates a .git file does not contain a gitdir redirect.
var ErrMalformedGitFile = errors.New("malformed git file")

// MarkerKind classifies the .git entry of a directory.
type MarkerKind int

const (
	// MarkerAbsent means the directory has no .git entry.
	MarkerAbsent MarkerKind = iota
	// MarkerDirectory means the directory holds a standard .git directory.
	MarkerDirectory
	// MarkerRedirectFile means the directory holds a .git file pointing elsewhere.
	MarkerRedirectFile
	// MarkerOther means the .git entry is neither a directory nor a regular file.
	MarkerOther
)

// InspectMarker reports which kind of .git entry, if any, the directory contains.
func InspectMarker(fileSystem shared.FileSystem, directoryPath string) (MarkerKind, error) {
	markerInfo, statError := fileSystem.Lstat(filepath.Join(directoryPath, shared.GitMarkerNameConstant))
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return MarkerAbsent, nil
		}
		return MarkerAbsent, statError
	}

	switch {
	case markerInfo.IsDir():
		return MarkerDirectory, nil
	case markerInfo.Mode().IsRegular():
		return MarkerRedirectFile, nil
	default:
		return MarkerOther, nil
	}
}

// HasGitMarker reports whether the directory contains any .git entry.
func HasGitMarker(fileSystem shared.FileSystem, directoryPath string) bool {
	markerKind, inspectError := InspectMarker(fileSystem, directoryPath)
	return inspectError == nil && markerKind != MarkerAbsent
}

// ReadGitFile resolves the metadata directory named by a "gitdir:" redirect file.
// Relative redirects are resolved against the directory holding the file.
func ReadGitFile(fileSystem shared.FileSystem, gitFilePath string) (string, error) {
	content, readError := fileSystem.ReadFile(gitFilePath)
	if readError != nil {
		return "", fmt.Errorf(gitFileReadErrorTemplateConstant, gitFilePath, readError)
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmedLine := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmedLine, gitDirectoryRedirectPrefixConstant) {
			continue
		}
		target := strings.TrimSpace(strings.TrimPrefix(trimmedLine, gitDirectoryRedirectPrefixConstant))
		if len(target) == 0 {
			break
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(gitFilePath), target)
		}
		return filepath.Clean(target), nil
	}

	return "", fmt.Errorf("%w: "+gitFileMalformedErrorTemplateConstant, ErrMalformedGitFile, gitFilePath)
}

// GitFileContent renders the redirect file written into a working tree of the split layout.
func GitFileContent(metadataDirectory string) []byte {
	return []byte(gitDirectoryRedirectPrefixConstant + " " + metadataDirectory + "\n")
}

// IsMetadataDirectory reports whether the path looks like a git metadata directory:
// a HEAD file next to objects and refs directories.
func IsMetadataDirectory(fileSystem shared.FileSystem, directoryPath string) bool {
	headInfo, headError := fileSystem.Stat(filepath.Join(directoryPath, metadataHeadFileNameConstant))
	if headError != nil || !headInfo.Mode().IsRegular() {
		return false
	}
	for _, requiredDirectory := range []string{metadataObjectsDirectoryNameConstant, metadataReferencesDirectoryNameConstant} {
		directoryInfo, directoryError := fileSystem.Stat(filepath.Join(directoryPath, requiredDirectory))
		if directoryError != nil || !directoryInfo.IsDir() {
			return false
		}
	}
	return true
}

// Contains reports whether candidatePath equals rootPath or lies beneath it.
func Contains(rootPath string, candidatePath string) bool {
	relativePath, relativeError := filepath.Rel(filepath.Clean(rootPath), filepath.Clean(candidatePath))
	if relativeError != nil {
		return false
	}
	if relativePath == parentDirectoryReferenceConstant {
		return false
	}
	return !strings.HasPrefix(relativePath, parentDirectoryReferenceConstant+string(filepath.Separator))
}
