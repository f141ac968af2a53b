// Package utils holds process-level helpers shared by the command line:
// layered configuration loading, zap logger construction, per-invocation
// context values and ULID generation.
package utils
