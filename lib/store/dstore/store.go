package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl implements store.IStore and store.ICreator on top of a Dragonboat NodeHost
// which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a serialized Command via SyncPropose and returns the data of the result.
func (s *storeImpl) write(ctx context.Context, cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncPropose(opCtx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			if err := sleep(ctx, s.timeout/10); err != nil {
				return nil, store.NewError(store.RetCInternalError, err.Error())
			}
			continue
		}
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read queries the state machine with SyncRead and casts the response into the expected type R.
// If the read fails due to a system busy error, it is retried up to 5 times.
func read[R any](ctx context.Context, s *storeImpl, q internal.Query) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncRead(opCtx, s.shardID, q)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			if err := sleep(ctx, s.timeout/10); err != nil {
				return zero, store.NewError(store.RetCInternalError, err.Error())
			}
			continue
		}
		if err != nil {
			var se *store.Error
			if errors.As(err, &se) {
				return zero, se
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Read(ctx context.Context, key string) ([]byte, error) {
	res, err := read[internal.QueryResult](ctx, s, internal.Query{
		Type: internal.QueryTRead,
		Key:  key,
	})
	if err != nil {
		return nil, err
	}
	if !res.Ok {
		return nil, store.NotFound(key)
	}
	return res.Value, nil
}

func (s *storeImpl) Write(ctx context.Context, key string, value []byte) error {
	_, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTWrite,
		Key:   key,
		Value: value,
	})
	return err
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	_, err := s.write(ctx, internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	return err
}

func (s *storeImpl) Create(ctx context.Context, key string, value []byte) (bool, error) {
	data, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTCreate,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return false, err
	}
	return len(data) == 1 && data[0] == 1, nil
}

// Size returns the number of records held by the shard. The read may be stale.
func (s *storeImpl) Size() (int, error) {
	res, err := s.nh.StaleRead(s.shardID, internal.Query{Type: internal.QueryTSize})
	if err != nil {
		return 0, store.NewError(store.RetCInternalError, err.Error())
	}
	n, ok := res.(int)
	if !ok {
		return 0, store.NewError(store.RetCInternalError, fmt.Sprintf("unexpected type: received %T, expected int", res))
	}
	return n, nil
}
