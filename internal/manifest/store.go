package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
)

const (
	defaultManifestPermissionsConstant   = fs.FileMode(0o644)
	temporaryFilePatternTemplateConstant = ".%s.%s-*.tmp"
	notFoundErrorTemplateConstant        = "%w: %s"
	readManifestErrorTemplateConstant    = "read manifest %s: %w"
	decodeManifestErrorTemplateConstant  = "load manifest %s: %w"
	encodeManifestErrorTemplateConstant  = "encode manifest %s: %w"
	writeManifestErrorTemplateConstant   = "write manifest %s: %w"
)

// Store loads and saves a manifest at one location.
type Store interface {
	Load(executionContext context.Context) (Manifest, error)
	Save(executionContext context.Context, manifest Manifest) error
	Location() string
}

// OpenStore selects a store implementation from the extension of location.
func OpenStore(location string) (Store, error) {
	format, formatError := FormatForPath(location)
	if formatError != nil {
		return nil, formatError
	}
	if format == FormatSQLite {
		return NewSQLiteStore(location), nil
	}
	codec, codecError := CodecForFormat(format)
	if codecError != nil {
		return nil, codecError
	}
	return NewFileStore(location, codec), nil
}

// FileStore persists a manifest as a single file through a Codec. Saves replace the file atomically.
type FileStore struct {
	location string
	codec    Codec
}

// NewFileStore constructs a file-backed store.
func NewFileStore(location string, codec Codec) *FileStore {
	return &FileStore{location: location, codec: codec}
}

// Location returns the manifest file path.
func (store *FileStore) Location() string {
	return store.location
}

// Load reads and decodes the manifest file.
func (store *FileStore) Load(executionContext context.Context) (Manifest, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Manifest{}, contextError
	}
	content, readError := os.ReadFile(store.location)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Manifest{}, fmt.Errorf(notFoundErrorTemplateConstant, ErrManifestNotFound, store.location)
		}
		return Manifest{}, fmt.Errorf(readManifestErrorTemplateConstant, store.location, readError)
	}
	manifest, decodeError := store.codec.Decode(content)
	if decodeError != nil {
		return Manifest{}, fmt.Errorf(decodeManifestErrorTemplateConstant, store.location, decodeError)
	}
	return manifest, nil
}

// Save validates and encodes manifest, then replaces the file atomically. A failed save leaves the
// previous file intact.
func (store *FileStore) Save(executionContext context.Context, manifest Manifest) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if validationError := manifest.Validate(); validationError != nil {
		return validationError
	}
	content, encodeError := store.codec.Encode(manifest)
	if encodeError != nil {
		return fmt.Errorf(encodeManifestErrorTemplateConstant, store.location, encodeError)
	}
	if writeError := writeFileAtomically(store.location, content); writeError != nil {
		return fmt.Errorf(writeManifestErrorTemplateConstant, store.location, writeError)
	}
	return nil
}

// writeFileAtomically writes content to a temporary file beside location, syncs it, and renames it over
// location. The existing file mode is preserved.
func writeFileAtomically(location string, content []byte) (resultError error) {
	permissions := defaultManifestPermissionsConstant
	if existingInfo, statError := os.Stat(location); statError == nil {
		permissions = existingInfo.Mode().Perm()
	}

	directory := filepath.Dir(location)
	pattern := fmt.Sprintf(temporaryFilePatternTemplateConstant, filepath.Base(location), ulid.Make().String())
	temporaryFile, createError := os.CreateTemp(directory, pattern)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()
	defer func() {
		if resultError != nil {
			_ = temporaryFile.Close()
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(content); writeError != nil {
		return writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		return syncError
	}
	if chmodError := temporaryFile.Chmod(permissions); chmodError != nil {
		return chmodError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return closeError
	}
	return os.Rename(temporaryPath, location)
}
