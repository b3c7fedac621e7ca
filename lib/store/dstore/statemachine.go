package dstore

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// RecordStateMachine is a state machine implementation for Dragonboat RAFT.
// It holds the raw lock records of one shard.
type RecordStateMachine struct {
	replicaID uint64
	shardID   uint64
	records   *xsync.MapOf[string, []byte]
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &RecordStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			records:   xsync.NewMapOf[string, []byte](),
		}
	}
}

// Lookup handles read-only queries.
func (fsm *RecordStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTRead:
		val, ok := fsm.records.Load(q.Key)
		if !ok {
			return internal.QueryResult{}, nil
		}
		out := make([]byte, len(val))
		copy(out, val)
		return internal.QueryResult{Value: out, Ok: true}, nil
	case internal.QueryTSize:
		return fsm.records.Size(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %s", q.Type))
	}
}

// Update applies write commands to the record map.
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *RecordStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e.Cmd)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single serialized command and returns its result.
// Result.Value always carries a store.RetCode.
func (fsm *RecordStateMachine) apply(data []byte) sm.Result {
	if len(data) == 0 {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(data); err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	switch cmd.Type {
	case internal.CommandTWrite:
		fsm.records.Store(cmd.Key, cmd.Value)
		return sm.Result{Value: uint64(store.RetCSuccess)}
	case internal.CommandTCreate:
		if _, loaded := fsm.records.LoadOrStore(cmd.Key, cmd.Value); loaded {
			return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{0}}
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{1}}
	case internal.CommandTDelete:
		if _, ok := fsm.records.LoadAndDelete(cmd.Key); !ok {
			return sm.Result{Value: uint64(store.RetCNotFound), Data: []byte(store.NotFound(cmd.Key).Msg)}
		}
		return sm.Result{Value: uint64(store.RetCSuccess)}
	default:
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
	}
}

// PrepareSnapshot copies the current records, the copy is written by SaveSnapshot
func (fsm *RecordStateMachine) PrepareSnapshot() (interface{}, error) {
	snapshot := make(map[string][]byte, fsm.records.Size())
	fsm.records.Range(func(key string, value []byte) bool {
		snapshot[key] = value
		return true
	})
	return snapshot, nil
}

// SaveSnapshot writes the prepared records to the writer as JSON
func (fsm *RecordStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	snapshot, ok := ctx.(map[string][]byte)
	if !ok {
		return fmt.Errorf("invalid snapshot context type: %T", ctx)
	}
	return json.NewEncoder(writer).Encode(snapshot)
}

// RecoverFromSnapshot replaces all records with the content of the snapshot
func (fsm *RecordStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	snapshot := make(map[string][]byte)
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	fsm.records.Clear()
	for k, v := range snapshot {
		fsm.records.Store(k, v)
	}
	return nil
}

// Close performs any necessary cleanup.
func (fsm *RecordStateMachine) Close() error {
	fsm.records.Clear()
	return nil
}
