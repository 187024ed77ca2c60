package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// RunLock is an exclusive lock file held for the duration of one run.
type RunLock struct {
	path string
}

// AcquireLock creates path exclusively. If it already exists and is younger than
// staleAfter, ErrLocked is returned; an older file is assumed abandoned by a crashed
// run and replaced. A zero staleAfter never breaks an existing lock.
func AcquireLock(path string, staleAfter time.Duration) (*RunLock, error) {
	lock, err := create(path)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}

	info, statErr := os.Stat(path)
	if statErr != nil || staleAfter <= 0 || time.Since(info.ModTime()) < staleAfter {
		return nil, fmt.Errorf("%w: %s", circular.ErrLocked, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
	}
	lock, err = create(path)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", circular.ErrLocked, path)
		}
		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}
	return lock, nil
}

func create(path string) (*RunLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &RunLock{path: path}, nil
}

// Release removes the lock file.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
