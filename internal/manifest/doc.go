// Package manifest models the declared set of repositories and persists it in CSV, YAML, TOML, JSON, or
// SQLite form. File-backed saves are atomic and SQLite saves are transactional.
package manifest
