package dstore

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/storetest"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/config"
)

var nextShardID atomic.Uint64

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

// startSingleNode starts a one replica raft cluster and returns a store for a fresh shard
func startSingleNode(t *testing.T) store.IStore {
	t.Helper()

	dir := t.TempDir()
	addr := freeAddr(t)
	nh, err := dragonboat.NewNodeHost(config.NodeHostConfig{
		WALDir:         filepath.Join(dir, "wal"),
		NodeHostDir:    filepath.Join(dir, "nh"),
		RTTMillisecond: 10,
		RaftAddress:    addr,
	})
	if err != nil {
		t.Fatalf("failed to create node host: %v", err)
	}
	t.Cleanup(nh.Close)

	shardID := nextShardID.Add(1)
	err = nh.StartConcurrentReplica(map[uint64]string{1: addr}, false, CreateStateMachineFactory(), config.Config{
		ReplicaID:          1,
		ShardID:            shardID,
		ElectionRTT:        10,
		HeartbeatRTT:       1,
		CheckQuorum:        true,
		SnapshotEntries:    100,
		CompactionOverhead: 10,
	})
	if err != nil {
		t.Fatalf("failed to start replica: %v", err)
	}

	s := NewDistributedStore(nh, shardID, time.Second)

	// wait until the shard has elected a leader
	deadline := time.Now().Add(10 * time.Second)
	for {
		err := s.Write(context.Background(), "ready", []byte{1})
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("shard %d not ready: %v", shardID, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := s.Delete(context.Background(), "ready"); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	return s
}

func TestDistributedStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping raft test in short mode")
	}

	storetest.RunStoreTests(t, "dstore", func(t *testing.T) store.IStore {
		return startSingleNode(t)
	})
}

func TestDistributedStoreSize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping raft test in short mode")
	}

	s := startSingleNode(t).(*storeImpl)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.Write(ctx, fmt.Sprintf("key-%d", i), []byte("v")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	n, err := s.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 records, got %d", n)
	}
}
