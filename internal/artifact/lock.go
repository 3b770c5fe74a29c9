package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const (
	// LockFileName is the name of the lock file inside the output directory.
	LockFileName = ".rcchain.lock"

	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute
)

// ErrLockExists is returned when another build holds the lock.
var ErrLockExists = errors.New("build lock exists: another build may be writing to this directory")

// Lock is an exclusive build lock on an output directory.
type Lock struct {
	fs   afero.Fs
	path string
	file afero.File
}

// AcquireLock takes the build lock for dir. The lock file is created with
// O_CREATE|O_EXCL; a lock older than StaleLockThreshold is removed and the
// acquisition retried once.
func AcquireLock(ctx context.Context, fs afero.Fs, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, LockFileName)

	file, err := createLockFile(fs, lockPath)
	if err != nil {
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(fs, lockPath); !stale {
			return nil, ErrLockExists
		}
		fs.Remove(lockPath)
		if file, err = createLockFile(fs, lockPath); err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		fs.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		fs.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{fs: fs, path: lockPath, file: file}, nil
}

func createLockFile(fs afero.Fs, path string) (afero.File, error) {
	return fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := l.fs.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

func isLockStale(fs afero.Fs, lockPath string) (bool, error) {
	info, err := fs.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}
