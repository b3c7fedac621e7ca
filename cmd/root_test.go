package cmd

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/store/boltstore"
	"github.com/spf13/viper"
)

func TestStorageClosedAfterFailedCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks.db")
	RootCmd.SetArgs([]string{"lock", "exists", "job", "not-the-token", "--backend", "bolt", "--path", path})
	t.Cleanup(func() {
		RootCmd.SetArgs(nil)
		viper.Reset()
	})

	err := execute()
	var exitErr *util.ExitCodeError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("expected exit code 1 for a lock that is not held, got %v", err)
	}

	// bbolt holds an exclusive file lock while the database is open
	s, err := boltstore.NewBoltStore(path, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("database still open after the command failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
