package repos

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitsplit/internal/manifest"
	"github.com/temirov/gitsplit/internal/reconcile"
)

const (
	missingEngineProviderMessageConstant = "engine provider not configured"
	missingStoreProviderMessageConstant  = "manifest store provider not configured"
	lockManifestErrorTemplateConstant    = "lock manifest %s: %w"
	unlockManifestLogMessageConstant     = "unable to release manifest lock"
	logFieldLockPathConstant             = "lock_path"
	notConfiguredErrorTemplateConstant   = "%w: %s"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// EngineProvider builds a reconciliation engine reporting to the command's output.
type EngineProvider func(command *cobra.Command) (*reconcile.Engine, error)

// StoreProvider opens the configured manifest store.
type StoreProvider func() (manifest.Store, error)

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveEngine(provider EngineProvider, command *cobra.Command) (*reconcile.Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf(notConfiguredErrorTemplateConstant, reconcile.ErrEngineNotConfigured, missingEngineProviderMessageConstant)
	}
	return provider(command)
}

func resolveStore(provider StoreProvider) (manifest.Store, error) {
	if provider == nil {
		return nil, fmt.Errorf(notConfiguredErrorTemplateConstant, reconcile.ErrEngineNotConfigured, missingStoreProviderMessageConstant)
	}
	return provider()
}

// withManifestLock runs action while holding the advisory lock beside the manifest of store.
func withManifestLock(executionContext context.Context, store manifest.Store, logger *zap.Logger, action func(context.Context) error) error {
	lockPath := manifest.LockPath(store.Location())
	manifestLock := manifest.NewFileLock(lockPath)
	if lockError := manifestLock.Lock(); lockError != nil {
		return fmt.Errorf(lockManifestErrorTemplateConstant, store.Location(), lockError)
	}
	defer func() {
		if unlockError := manifestLock.Unlock(); unlockError != nil {
			logger.Warn(unlockManifestLogMessageConstant, zap.String(logFieldLockPathConstant, lockPath), zap.Error(unlockError))
		}
	}()
	return action(executionContext)
}

// mutatingRun wraps an engine operation in the manifest lock.
func mutatingRun(command *cobra.Command, engineProvider EngineProvider, storeProvider StoreProvider, loggerProvider LoggerProvider, operation func(context.Context, *reconcile.Engine) error) error {
	store, storeError := resolveStore(storeProvider)
	if storeError != nil {
		return storeError
	}
	engine, engineError := resolveEngine(engineProvider, command)
	if engineError != nil {
		return engineError
	}
	return withManifestLock(command.Context(), store, resolveLogger(loggerProvider), func(executionContext context.Context) error {
		return operation(executionContext, engine)
	})
}
