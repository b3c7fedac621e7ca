package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
)

var log = logger.GetLogger("store")

const (
	filePerm = 0o644
	dirPerm  = 0o755

	// guardFile is the lock file serializing all mutations of a local store.
	// Keys never start with a dot, so it cannot clash with a record.
	guardFile = ".store.flock"

	// flockRetryDelay is the poll interval while waiting for the guard
	flockRetryDelay = 5 * time.Millisecond
)

type storeImpl struct {
	fs afero.Fs
	// dir is the real directory backing fs, empty for non os filesystems.
	// Only stores with a real directory can guard mutations with flock.
	dir string
}

// NewFileStore creates a store keeping one file per key in the root of the given filesystem.
// Stores created this way do not offer an atomic create (store.ICreator returns RetCUnsupportedOperation).
func NewFileStore(fsys afero.Fs) store.IStore {
	return &storeImpl{fs: fsys}
}

// NewLocalFileStore creates a store in the directory dir, creating it if needed.
// In addition to NewFileStore, writes on the same host are serialized with
// an advisory file lock, which makes Create an atomic create-if-absent.
func NewLocalFileStore(dir string) (store.IStore, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &storeImpl{
		fs:  afero.NewBasePathFs(afero.NewOsFs(), abs),
		dir: abs,
	}, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// validateKey rejects keys that would escape the store directory or clash with temp files
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid key for file store: %q", key))
	}
	return nil
}

// guard runs fn while holding the store's flock (only for local directories).
// One guard file serves all keys, so the directory holds no lock file per key.
func (s *storeImpl) guard(ctx context.Context, key string, fn func() error) error {
	if s.dir == "" {
		return fn()
	}

	fl := flock.New(filepath.Join(s.dir, guardFile))
	locked, err := fl.TryLockContext(ctx, flockRetryDelay)
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to lock %s: %v", key, err))
	}
	if !locked {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to lock %s", key))
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			log.Warningf("failed to unlock guard for %s: %v", key, err)
		}
	}()

	return fn()
}

// writeFile writes value to a temp file and renames it over key,
// so readers never observe a partially written value
func (s *storeImpl) writeFile(key string, value []byte) error {
	tmp := "." + key + "." + uuid.NewString() + ".tmp"

	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to create temp file: %v", err))
	}

	_, err = f.Write(value)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to write %s: %v", key, err))
	}

	if err := s.fs.Rename(tmp, key); err != nil {
		_ = s.fs.Remove(tmp)
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to rename temp file for %s: %v", key, err))
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Read(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.NotFound(key)
	}
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to read %s: %v", key, err))
	}
	return data, nil
}

func (s *storeImpl) Write(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.guard(ctx, key, func() error {
		return s.writeFile(key, value)
	})
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.guard(ctx, key, func() error {
		err := s.fs.Remove(key)
		if errors.Is(err, fs.ErrNotExist) {
			return store.NotFound(key)
		}
		if err != nil {
			return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to delete %s: %v", key, err))
		}
		return nil
	})
}

func (s *storeImpl) Create(ctx context.Context, key string, value []byte) (bool, error) {
	if s.dir == "" {
		return false, store.NewError(store.RetCUnsupportedOperation, "Create requires a local directory store")
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	created := false
	err := s.guard(ctx, key, func() error {
		_, err := s.fs.Stat(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to stat %s: %v", key, err))
		}
		if err := s.writeFile(key, value); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
