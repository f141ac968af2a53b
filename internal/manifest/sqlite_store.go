package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverNameConstant = "sqlite"

	createSettingsTableStatementConstant = `
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`
	createRepositoriesTableStatementConstant = `
		CREATE TABLE IF NOT EXISTS repositories (
			path TEXT PRIMARY KEY,
			url  TEXT NOT NULL
		)`
	selectSettingsStatementConstant     = "SELECT key, value FROM settings"
	selectRepositoriesStatementConstant = "SELECT path, url FROM repositories ORDER BY path"
	deleteSettingsStatementConstant     = "DELETE FROM settings"
	deleteRepositoriesStatementConstant = "DELETE FROM repositories"
	insertSettingStatementConstant      = "INSERT INTO settings (key, value) VALUES (?, ?)"
	insertRepositoryStatementConstant   = "INSERT INTO repositories (path, url) VALUES (?, ?)"

	openDatabaseErrorTemplateConstant      = "open sqlite manifest %s: %w"
	createSchemaErrorTemplateConstant      = "create sqlite manifest schema: %w"
	querySettingsErrorTemplateConstant     = "%w: read settings: %v"
	queryRepositoriesErrorTemplateConstant = "%w: read repositories: %v"
	unknownSettingErrorTemplateConstant    = "%w: unknown setting %q"
	beginTransactionErrorTemplateConstant  = "begin manifest transaction: %w"
	clearTablesErrorTemplateConstant       = "clear manifest tables: %w"
	insertSettingErrorTemplateConstant     = "store setting %s: %w"
	insertRepositoryErrorTemplateConstant  = "store repository %s: %w"
	commitTransactionErrorTemplateConstant = "commit manifest transaction: %w"
)

// SQLiteStore persists a manifest in a SQLite database with settings and repositories tables.
// Saves replace both tables inside one transaction.
type SQLiteStore struct {
	location string
}

// NewSQLiteStore constructs a SQLite-backed store.
func NewSQLiteStore(location string) *SQLiteStore {
	return &SQLiteStore{location: location}
}

// Location returns the database path.
func (store *SQLiteStore) Location() string {
	return store.location
}

// Load reads the settings and repositories tables.
func (store *SQLiteStore) Load(executionContext context.Context) (Manifest, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Manifest{}, contextError
	}
	if _, statError := os.Stat(store.location); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return Manifest{}, fmt.Errorf(notFoundErrorTemplateConstant, ErrManifestNotFound, store.location)
		}
		return Manifest{}, fmt.Errorf(readManifestErrorTemplateConstant, store.location, statError)
	}

	database, openError := store.open()
	if openError != nil {
		return Manifest{}, openError
	}
	defer database.Close()

	settings, settingsError := readSettings(executionContext, database)
	if settingsError != nil {
		return Manifest{}, fmt.Errorf(decodeManifestErrorTemplateConstant, store.location, settingsError)
	}
	records, recordsError := readRepositories(executionContext, database)
	if recordsError != nil {
		return Manifest{}, fmt.Errorf(decodeManifestErrorTemplateConstant, store.location, recordsError)
	}

	manifest, manifestError := FromRecords(settings, records)
	if manifestError != nil {
		return Manifest{}, fmt.Errorf(decodeManifestErrorTemplateConstant, store.location, manifestError)
	}
	return manifest, nil
}

// Save replaces the stored manifest in a single transaction.
func (store *SQLiteStore) Save(executionContext context.Context, manifest Manifest) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if validationError := manifest.Validate(); validationError != nil {
		return validationError
	}

	database, openError := store.open()
	if openError != nil {
		return openError
	}
	defer database.Close()

	if schemaError := createSchema(executionContext, database); schemaError != nil {
		return schemaError
	}

	transaction, beginError := database.BeginTx(executionContext, nil)
	if beginError != nil {
		return fmt.Errorf(beginTransactionErrorTemplateConstant, beginError)
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	for _, statement := range []string{deleteSettingsStatementConstant, deleteRepositoriesStatementConstant} {
		if _, execError := transaction.ExecContext(executionContext, statement); execError != nil {
			return fmt.Errorf(clearTablesErrorTemplateConstant, execError)
		}
	}

	settingRows := [][2]string{
		{worktreeRootKeyConstant, manifest.Settings.WorktreeRoot},
		{gitDirectoriesRootKeyConstant, manifest.Settings.GitDirectoriesRoot},
	}
	for _, settingRow := range settingRows {
		if _, execError := transaction.ExecContext(executionContext, insertSettingStatementConstant, settingRow[0], settingRow[1]); execError != nil {
			return fmt.Errorf(insertSettingErrorTemplateConstant, settingRow[0], execError)
		}
	}
	for _, record := range manifest.records {
		if _, execError := transaction.ExecContext(executionContext, insertRepositoryStatementConstant, record.Path, record.URL); execError != nil {
			return fmt.Errorf(insertRepositoryErrorTemplateConstant, record.Path, execError)
		}
	}

	if commitError := transaction.Commit(); commitError != nil {
		return fmt.Errorf(commitTransactionErrorTemplateConstant, commitError)
	}
	return nil
}

func (store *SQLiteStore) open() (*sql.DB, error) {
	database, openError := sql.Open(sqliteDriverNameConstant, store.location)
	if openError != nil {
		return nil, fmt.Errorf(openDatabaseErrorTemplateConstant, store.location, openError)
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	return database, nil
}

func createSchema(executionContext context.Context, database *sql.DB) error {
	for _, statement := range []string{createSettingsTableStatementConstant, createRepositoriesTableStatementConstant} {
		if _, execError := database.ExecContext(executionContext, statement); execError != nil {
			return fmt.Errorf(createSchemaErrorTemplateConstant, execError)
		}
	}
	return nil
}

func readSettings(executionContext context.Context, database *sql.DB) (Settings, error) {
	rows, queryError := database.QueryContext(executionContext, selectSettingsStatementConstant)
	if queryError != nil {
		return Settings{}, fmt.Errorf(querySettingsErrorTemplateConstant, ErrManifestCorrupt, queryError)
	}
	defer rows.Close()

	var settings Settings
	for rows.Next() {
		var settingKey string
		var settingValue string
		if scanError := rows.Scan(&settingKey, &settingValue); scanError != nil {
			return Settings{}, fmt.Errorf(querySettingsErrorTemplateConstant, ErrManifestCorrupt, scanError)
		}
		switch settingKey {
		case worktreeRootKeyConstant:
			settings.WorktreeRoot = settingValue
		case gitDirectoriesRootKeyConstant:
			settings.GitDirectoriesRoot = settingValue
		default:
			return Settings{}, fmt.Errorf(unknownSettingErrorTemplateConstant, ErrManifestCorrupt, settingKey)
		}
	}
	if iterationError := rows.Err(); iterationError != nil {
		return Settings{}, fmt.Errorf(querySettingsErrorTemplateConstant, ErrManifestCorrupt, iterationError)
	}
	return settings, nil
}

func readRepositories(executionContext context.Context, database *sql.DB) ([]RepositoryRecord, error) {
	rows, queryError := database.QueryContext(executionContext, selectRepositoriesStatementConstant)
	if queryError != nil {
		return nil, fmt.Errorf(queryRepositoriesErrorTemplateConstant, ErrManifestCorrupt, queryError)
	}
	defer rows.Close()

	var records []RepositoryRecord
	for rows.Next() {
		var record RepositoryRecord
		if scanError := rows.Scan(&record.Path, &record.URL); scanError != nil {
			return nil, fmt.Errorf(queryRepositoriesErrorTemplateConstant, ErrManifestCorrupt, scanError)
		}
		records = append(records, record)
	}
	if iterationError := rows.Err(); iterationError != nil {
		return nil, fmt.Errorf(queryRepositoriesErrorTemplateConstant, ErrManifestCorrupt, iterationError)
	}
	return records, nil
}
