package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// FormatCSV stores settings rows and path,url rows in a flat CSV file.
	FormatCSV = "csv"
	// FormatYAML stores settings and repositories as YAML sections.
	FormatYAML = "yaml"
	// FormatTOML stores settings and repositories as TOML tables.
	FormatTOML = "toml"
	// FormatJSON stores settings and repositories as a schema-validated JSON document.
	FormatJSON = "json"
	// FormatSQLite stores settings and repositories in SQLite tables.
	FormatSQLite = "sqlite"

	unsupportedFormatErrorTemplateConstant = "%w: %q (supported extensions: .csv, .yaml, .yml, .toml, .json, .db, .sqlite, .sqlite3)"
	malformedDocumentErrorTemplateConstant = "%w: %v"
)

// ErrUnsupportedFormat indicates a manifest location whose extension maps to no known format.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// Codec converts a manifest to and from the bytes of one file format.
type Codec interface {
	Decode(content []byte) (Manifest, error)
	Encode(manifest Manifest) ([]byte, error)
}

// FormatForPath returns the manifest format selected by the extension of location.
func FormatForPath(location string) (string, error) {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf(unsupportedFormatErrorTemplateConstant, ErrUnsupportedFormat, location)
	}
}

// CodecForFormat returns the file codec of a format. SQLite has no codec because it is not a flat file.
func CodecForFormat(format string) (Codec, error) {
	switch format {
	case FormatCSV:
		return CSVCodec{}, nil
	case FormatYAML:
		return YAMLCodec{}, nil
	case FormatTOML:
		return TOMLCodec{}, nil
	case FormatJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf(unsupportedFormatErrorTemplateConstant, ErrUnsupportedFormat, format)
	}
}

// manifestDocument is the sectioned shape shared by the YAML, TOML, and JSON codecs.
type manifestDocument struct {
	Settings     documentSettings  `yaml:"settings" toml:"settings" json:"settings"`
	Repositories map[string]string `yaml:"repositories" toml:"repositories" json:"repositories"`
}

type documentSettings struct {
	WorktreeRoot       string `yaml:"worktree_root" toml:"worktree_root" json:"worktree_root"`
	GitDirectoriesRoot string `yaml:"git_dirs_root" toml:"git_dirs_root" json:"git_dirs_root"`
}

func newManifestDocument(manifest Manifest) manifestDocument {
	repositories := make(map[string]string, manifest.Len())
	for _, record := range manifest.records {
		repositories[record.Path] = record.URL
	}
	return manifestDocument{
		Settings: documentSettings{
			WorktreeRoot:       manifest.Settings.WorktreeRoot,
			GitDirectoriesRoot: manifest.Settings.GitDirectoriesRoot,
		},
		Repositories: repositories,
	}
}

func (document manifestDocument) manifest() (Manifest, error) {
	records := make([]RepositoryRecord, 0, len(document.Repositories))
	for repositoryPath, repositoryURL := range document.Repositories {
		records = append(records, RepositoryRecord{Path: repositoryPath, URL: repositoryURL})
	}
	sortRecords(records)
	return FromRecords(Settings{
		WorktreeRoot:       document.Settings.WorktreeRoot,
		GitDirectoriesRoot: document.Settings.GitDirectoriesRoot,
	}, records)
}

func malformedDocumentError(cause error) error {
	return fmt.Errorf(malformedDocumentErrorTemplateConstant, ErrManifestCorrupt, cause)
}
