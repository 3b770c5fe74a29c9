package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestAcquireLock(t *testing.T) {
	t.Run("creates lock file", func(t *testing.T) {
		dir := t.TempDir()
		fs := afero.NewOsFs()

		lock, err := AcquireLock(context.Background(), fs, dir)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		want := filepath.Join(dir, LockFileName)
		if lock.Path() != want {
			t.Errorf("lock path = %s, want %s", lock.Path(), want)
		}
		if _, err := os.Stat(want); os.IsNotExist(err) {
			t.Error("lock file not created")
		}
	})

	t.Run("prevents concurrent locks", func(t *testing.T) {
		dir := t.TempDir()
		fs := afero.NewOsFs()

		lock1, err := AcquireLock(context.Background(), fs, dir)
		if err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}
		defer lock1.Release()

		_, err = AcquireLock(context.Background(), fs, dir)
		if !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := AcquireLock(ctx, afero.NewMemMapFs(), "/out")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("creates directory if needed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")

		lock, err := AcquireLock(context.Background(), afero.NewOsFs(), dir)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Error("directory not created")
		}
	})

	t.Run("writes lock metadata", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		lock, err := AcquireLock(context.Background(), fs, "/out")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		data, err := afero.ReadFile(fs, lock.Path())
		if err != nil {
			t.Fatalf("failed to read lock file: %v", err)
		}
		if len(data) == 0 {
			t.Error("lock file should contain metadata")
		}
	})
}

func TestLockRelease(t *testing.T) {
	t.Run("removes lock file", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), afero.NewOsFs(), dir)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		lockPath := lock.Path()

		if err := lock.Release(); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
			t.Error("lock file should be removed after release")
		}
	})

	t.Run("allows new lock after release", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		lock1, err := AcquireLock(context.Background(), fs, "/out")
		if err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}
		lock1.Release()

		lock2, err := AcquireLock(context.Background(), fs, "/out")
		if err != nil {
			t.Fatalf("second AcquireLock should succeed: %v", err)
		}
		defer lock2.Release()
	})

	t.Run("is idempotent", func(t *testing.T) {
		lock, err := AcquireLock(context.Background(), afero.NewMemMapFs(), "/out")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}

		if err := lock.Release(); err != nil {
			t.Fatalf("first Release failed: %v", err)
		}
		if err := lock.Release(); err != nil {
			t.Fatalf("second Release should not error: %v", err)
		}
	})
}

func TestStaleLockHandling(t *testing.T) {
	writeLock := func(t *testing.T, fs afero.Fs, age time.Duration) {
		t.Helper()

		lockPath := filepath.Join("/out", LockFileName)
		if err := afero.WriteFile(fs, lockPath, []byte("pid=99999\ntimestamp=2020-01-01T00:00:00Z\n"), 0o600); err != nil {
			t.Fatalf("failed to create lock: %v", err)
		}
		mtime := time.Now().Add(-age)
		if err := fs.Chtimes(lockPath, mtime, mtime); err != nil {
			t.Fatalf("failed to set lock time: %v", err)
		}
	}

	t.Run("removes stale lock and acquires new one", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeLock(t, fs, StaleLockThreshold+time.Minute)

		lock, err := AcquireLock(context.Background(), fs, "/out")
		if err != nil {
			t.Fatalf("AcquireLock should succeed with stale lock: %v", err)
		}
		defer lock.Release()
	})

	t.Run("fails for non-stale lock", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeLock(t, fs, 0)

		if _, err := AcquireLock(context.Background(), fs, "/out"); !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})
}
