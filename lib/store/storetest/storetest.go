package storetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dLock/lib/store"
)

// StoreFactory creates a new, empty store for a single sub test.
// Stores implementing io.Closer are closed when the sub test ends.
type StoreFactory func(t *testing.T) store.IStore

// RunStoreTests runs the conformance suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Write&Read", func(t *testing.T) {
			testWriteRead(t, open(t, factory))
		})

		t.Run("ReadMissing", func(t *testing.T) {
			testReadMissing(t, open(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, open(t, factory))
		})

		t.Run("ValueIsolation", func(t *testing.T) {
			testValueIsolation(t, open(t, factory))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, open(t, factory))
		})

		t.Run("Create", func(t *testing.T) {
			testCreate(t, open(t, factory))
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, open(t, factory))
		})

		t.Run("ConcurrentCreate", func(t *testing.T) {
			testConcurrentCreate(t, open(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a store and registers its cleanup
func open(t *testing.T, factory StoreFactory) store.IStore {
	t.Helper()
	s := factory(t)
	if c, ok := s.(io.Closer); ok {
		t.Cleanup(func() { _ = c.Close() })
	}
	return s
}

// requireCreator skips the test if the store has no usable create-if-absent primitive
func requireCreator(t *testing.T, s store.IStore) store.ICreator {
	t.Helper()
	c, ok := s.(store.ICreator)
	if !ok {
		t.Skip("store does not implement store.ICreator")
	}
	_, err := c.Create(context.Background(), "creator-check", []byte("x"))
	if store.IsUnsupported(err) {
		t.Skip("store.ICreator unsupported by this configuration")
	}
	if err != nil {
		t.Fatalf("Create check failed: %v", err)
	}
	return c
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testWriteRead(t *testing.T, s store.IStore) {
	ctx := context.Background()

	key := "sf.test-key.abcdefg.lock"
	value := []byte(`{"token":"abc","expire":1700000000.5}`)

	if err := s.Write(ctx, key, value); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Expected value %s, got %s", value, got)
	}
}

func testReadMissing(t *testing.T, s store.IStore) {
	_, err := s.Read(context.Background(), "nonexistent-key")
	if err == nil {
		t.Fatalf("Expected error for missing key")
	}
	if !store.IsNotFound(err) {
		t.Errorf("Expected RetCNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	ctx := context.Background()

	key := "delete-key"
	if err := s.Write(ctx, key, []byte("value")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Read(ctx, key); !store.IsNotFound(err) {
		t.Errorf("Expected RetCNotFound after Delete, got %v", err)
	}

	// deleting again reports not found
	if err := s.Delete(ctx, key); !store.IsNotFound(err) {
		t.Errorf("Expected RetCNotFound on second Delete, got %v", err)
	}
}

func testOverwrite(t *testing.T, s store.IStore) {
	ctx := context.Background()
	key := "overwrite-key"

	values := [][]byte{
		[]byte("a much longer first value"),
		[]byte("short"),
		[]byte(`{"token":null}`),
	}
	for i, v := range values {
		if err := s.Write(ctx, key, v); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
		got, err := s.Read(ctx, key)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if !bytes.Equal(got, v) {
			t.Errorf("Write %d: expected %q, got %q", i, v, got)
		}
	}
}

func testValueIsolation(t *testing.T, s store.IStore) {
	ctx := context.Background()
	key := "isolation-key"

	value := []byte("original")
	if err := s.Write(ctx, key, value); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// mutating the written slice must not change the stored value
	value[0] = 'X'

	got, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Store kept a reference to the written slice: %q", got)
	}

	// mutating the returned slice must not change the stored value
	got[0] = 'Y'
	again, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(again) != "original" {
		t.Errorf("Read should return a copy, got %q", again)
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	ctx := context.Background()

	// empty value
	if err := s.Write(ctx, "empty-value", []byte{}); err != nil {
		t.Fatalf("Write of empty value failed: %v", err)
	}
	got, err := s.Read(ctx, "empty-value")
	if err != nil {
		t.Fatalf("Read of empty value failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty value, got %q", got)
	}

	// binary value
	bin := []byte{0, 1, 2, 3, 254, 255}
	if err := s.Write(ctx, "binary-value", bin); err != nil {
		t.Fatalf("Write of binary value failed: %v", err)
	}
	got, err = s.Read(ctx, "binary-value")
	if err != nil {
		t.Fatalf("Read of binary value failed: %v", err)
	}
	if !bytes.Equal(got, bin) {
		t.Errorf("Expected %v, got %v", bin, got)
	}

	// keys that only differ in their suffix must not collide
	if err := s.Write(ctx, "sf.name.aaaaaaa.lock", []byte("a")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write(ctx, "sf.name.aaaaaab.lock", []byte("b")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	a, _ := s.Read(ctx, "sf.name.aaaaaaa.lock")
	b, _ := s.Read(ctx, "sf.name.aaaaaab.lock")
	if string(a) != "a" || string(b) != "b" {
		t.Errorf("Keys collided: a=%q b=%q", a, b)
	}
}

func testCreate(t *testing.T, s store.IStore) {
	c := requireCreator(t, s)
	ctx := context.Background()

	created, err := c.Create(ctx, "create-key", []byte("first"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created {
		t.Fatalf("Expected first Create to succeed")
	}

	created, err = c.Create(ctx, "create-key", []byte("second"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created {
		t.Errorf("Expected second Create to report an existing key")
	}

	got, err := s.Read(ctx, "create-key")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("Create overwrote the existing value: %q", got)
	}

	// after a delete the key can be created again
	if err := s.Delete(ctx, "create-key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	created, err = c.Create(ctx, "create-key", []byte("third"))
	if err != nil || !created {
		t.Errorf("Expected Create after Delete to succeed, got created=%v err=%v", created, err)
	}
}

func testConcurrentWriters(t *testing.T, s store.IStore) {
	ctx := context.Background()
	const writers = 8
	const rounds = 20

	var wg sync.WaitGroup
	var failures atomic.Int64
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				key := fmt.Sprintf("writer-%d", w)
				val := []byte(fmt.Sprintf("value-%d-%d", w, i))
				if err := s.Write(ctx, key, val); err != nil {
					failures.Add(1)
					continue
				}
				got, err := s.Read(ctx, key)
				if err != nil || !bytes.Equal(got, val) {
					failures.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if n := failures.Load(); n > 0 {
		t.Errorf("%d concurrent operations failed", n)
	}
}

func testConcurrentCreate(t *testing.T, s store.IStore) {
	c := requireCreator(t, s)
	ctx := context.Background()
	const racers = 8

	var wg sync.WaitGroup
	var winners atomic.Int64
	for r := 0; r < racers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			created, err := c.Create(ctx, "contended-key", []byte(fmt.Sprintf("racer-%d", r)))
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if created {
				winners.Add(1)
			}
		}(r)
	}
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("Expected exactly one winner, got %d", n)
	}
}
