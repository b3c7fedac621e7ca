package client

import (
	"context"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
)

// NewRPCStore connects the transport and returns a store.IStore that
// forwards every operation to the given shard of the server.
// The returned store also implements store.ICreator and io.Closer.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	Logger.Debugf("rpc store for shard %d ready", shardId)

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Read(ctx context.Context, key string) ([]byte, error) {
	resp, err := i.invokeRPCRequest(ctx, common.NewReadRequest(key))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (i *rpcStore) Write(ctx context.Context, key string, value []byte) error {
	_, err := i.invokeRPCRequest(ctx, common.NewWriteRequest(key, value))
	return err
}

func (i *rpcStore) Delete(ctx context.Context, key string) error {
	_, err := i.invokeRPCRequest(ctx, common.NewDeleteRequest(key))
	return err
}

// Create is answered with RetCUnsupportedOperation if the backend of the shard
// cannot create atomically.
func (i *rpcStore) Create(ctx context.Context, key string, value []byte) (bool, error) {
	resp, err := i.invokeRPCRequest(ctx, common.NewCreateRequest(key, value))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// Close closes the underlying transport
func (i *rpcStore) Close() error {
	return i.transport.Close()
}
