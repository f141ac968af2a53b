package manifest

import (
	"errors"
	"os"
	"syscall"
)

const (
	lockFileSuffixConstant      = ".lock"
	lockFilePermissionsConstant = 0o600
)

// LockPath returns the advisory lock file guarding the manifest at location.
func LockPath(location string) string {
	return location + lockFileSuffixConstant
}

// FileLock provides exclusive flock-based locking across processes.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock for path. The lock file is created on first Lock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires the exclusive lock, blocking until it is available.
func (lock *FileLock) Lock() error {
	return lock.acquire(syscall.LOCK_EX)
}

// TryLock acquires the exclusive lock without blocking and reports whether it was acquired.
func (lock *FileLock) TryLock() (bool, error) {
	acquireError := lock.acquire(syscall.LOCK_EX | syscall.LOCK_NB)
	if errors.Is(acquireError, syscall.EWOULDBLOCK) {
		return false, nil
	}
	if acquireError != nil {
		return false, acquireError
	}
	return true, nil
}

// Unlock releases the lock and closes the lock file.
func (lock *FileLock) Unlock() error {
	if lock.file == nil {
		return nil
	}

	if unlockError := syscall.Flock(int(lock.file.Fd()), syscall.LOCK_UN); unlockError != nil {
		lock.file.Close()
		lock.file = nil
		return unlockError
	}

	closeError := lock.file.Close()
	lock.file = nil
	return closeError
}

func (lock *FileLock) acquire(operation int) error {
	file, openError := os.OpenFile(lock.path, os.O_CREATE|os.O_RDWR, lockFilePermissionsConstant)
	if openError != nil {
		return openError
	}

	if flockError := syscall.Flock(int(file.Fd()), operation); flockError != nil {
		file.Close()
		return flockError
	}
	lock.file = file
	return nil
}
