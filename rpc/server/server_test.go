package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/storetest"
	"github.com/ValentinKolb/dLock/rpc/client"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
	transportHttp "github.com/ValentinKolb/dLock/rpc/transport/http"
	"github.com/ValentinKolb/dLock/rpc/transport/tcp"
	"github.com/ValentinKolb/dLock/rpc/transport/unix"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type testSetup struct {
	name            string
	endpoint        func(t *testing.T) (listen, dial string)
	serverTransport func() transport.IRPCServerTransport
	clientTransport func() transport.IRPCClientTransport
	serializer      func() serializer.IRPCSerializer
}

var setups = []testSetup{
	{
		name:            "unix+binary",
		endpoint:        socketEndpoint,
		serverTransport: unix.NewUnixDefaultServerTransport,
		clientTransport: unix.NewUnixClientTransport,
		serializer:      serializer.NewBinarySerializer,
	},
	{
		name:            "tcp+gob",
		endpoint:        tcpEndpoint,
		serverTransport: tcp.NewTCPDefaultServerTransport,
		clientTransport: tcp.NewTCPClientTransport,
		serializer:      serializer.NewGOBSerializer,
	},
	{
		name:            "http+json",
		endpoint:        httpEndpoint,
		serverTransport: transportHttp.NewHttpServerTransport,
		clientTransport: transportHttp.NewHttpClientTransport,
		serializer:      serializer.NewJSONSerializer,
	},
}

// socketEndpoint returns a short socket path, t.TempDir() may exceed the socket path limit
func socketEndpoint(t *testing.T) (string, string) {
	dir, err := os.MkdirTemp("", "dlock-")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")
	return path, path
}

func freeAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func tcpEndpoint(t *testing.T) (string, string) {
	addr := freeAddr(t)
	return addr, addr
}

func httpEndpoint(t *testing.T) (string, string) {
	addr := freeAddr(t)
	return addr, "http://" + addr
}

// startServer runs a server with the given shards until the test ends and
// returns the endpoint clients dial
func startServer(t *testing.T, setup testSetup, shards ...common.ServerShard) string {
	t.Helper()

	listen, dial := setup.endpoint(t)
	srv := NewRPCServer(common.ServerConfig{
		Shards:        shards,
		DataDir:       t.TempDir(),
		TimeoutSecond: 5,
		Endpoint:      listen,
		LogLevel:      "error",
	}, setup.serverTransport(), setup.serializer())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		_ = srv.Close()
		if err := <-done; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})

	waitForListener(t, listen, done)
	return dial
}

// waitForListener polls until the server accepts connections
func waitForListener(t *testing.T, listen string, done <-chan error) {
	t.Helper()
	network := "tcp"
	if strings.HasPrefix(listen, "/") {
		network = "unix"
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case err := <-done:
			t.Fatalf("server stopped early: %v", err)
		default:
		}
		conn, err := net.DialTimeout(network, listen, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start listening on %s: %v", listen, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func connect(t *testing.T, setup testSetup, dial string, shardID uint64) store.IStore {
	t.Helper()
	s, err := client.NewRPCStore(shardID, common.ClientConfig{
		Endpoints:     []string{dial},
		TimeoutSecond: 5,
		RetryCount:    2,
	}, setup.clientTransport(), setup.serializer())
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.(io.Closer).Close() })
	return s
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRPCStore(t *testing.T) {
	for _, setup := range setups {
		storetest.RunStoreTests(t, setup.name, func(t *testing.T) store.IStore {
			dial := startServer(t, setup, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocal})
			return connect(t, setup, dial, 1)
		})
	}
}

func TestRPCStorePersistentShards(t *testing.T) {
	setup := setups[0]
	shards := []common.ServerShard{
		{ShardID: 1, Type: common.ShardTypeFile},
		{ShardID: 2, Type: common.ShardTypeBolt},
		{ShardID: 3, Type: common.ShardTypeSQL},
	}

	for _, shard := range shards {
		storetest.RunStoreTests(t, string(shard.Type), func(t *testing.T) store.IStore {
			dial := startServer(t, setup, shard)
			return connect(t, setup, dial, shard.ShardID)
		})
	}
}

func TestRPCUnknownShard(t *testing.T) {
	setup := setups[0]
	dial := startServer(t, setup, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocal})
	s := connect(t, setup, dial, 42)

	_, err := s.Read(context.Background(), "k")
	if store.CodeOf(err) != store.RetCInvalidOperation {
		t.Fatalf("expected invalid operation for an unknown shard, got %v", err)
	}
}

func TestRPCShardsAreIsolated(t *testing.T) {
	setup := setups[1]
	dial := startServer(t, setup,
		common.ServerShard{ShardID: 1, Type: common.ShardTypeLocal},
		common.ServerShard{ShardID: 2, Type: common.ShardTypeLocal},
	)
	one, two := connect(t, setup, dial, 1), connect(t, setup, dial, 2)
	ctx := context.Background()

	if err := one.Write(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := two.Read(ctx, "k"); !store.IsNotFound(err) {
		t.Errorf("expected the record to be missing on shard 2, got %v", err)
	}
}

func TestRPCLockManager(t *testing.T) {
	setup := setups[0]
	dial := startServer(t, setup, common.ServerShard{ShardID: 1, Type: common.ShardTypeBolt})
	ctx := context.Background()

	alice := lockmgr.NewLockManager(connect(t, setup, dial, 1), lockmgr.WithAtomicCreate())
	bob := lockmgr.NewLockManager(connect(t, setup, dial, 1), lockmgr.WithAtomicCreate())

	ha := lockmgr.NewHandle("job-42", lockmgr.WithTTL(time.Minute))
	hb := lockmgr.NewHandle("job-42", lockmgr.WithTTL(time.Minute))

	if err := alice.Acquire(ctx, ha); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := bob.Acquire(ctx, hb); !errors.Is(err, lockmgr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if ok, err := bob.Exists(ctx, ha); err != nil || !ok {
		t.Errorf("Exists with the owner's token = %v, %v", ok, err)
	}

	if err := alice.Release(ctx, ha); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := bob.Acquire(ctx, hb); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
}

func TestHTTPMetricsEndpoint(t *testing.T) {
	setup := setups[2]
	dial := startServer(t, setup, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocal})

	// one request so the counter exists
	s := connect(t, setup, dial, 1)
	if err := s.Write(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	resp, err := http.Get(dial + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %s", resp.Status)
	}
	if want := fmt.Sprintf(`dlock_rpc_requests_total{type=%q}`, "write"); !strings.Contains(string(body), want) {
		t.Errorf("metrics output does not contain %s", want)
	}
	if want := `dlock_shard_records{shard="1"} 1`; !strings.Contains(string(body), want) {
		t.Errorf("metrics output does not contain %s", want)
	}
}
