package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores everything an RPC client needs to reach one shard
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest sends req to the shard and returns the response.
// Error responses are converted back into *store.Error values, a response of
// an unexpected type is an error as well.
func (a *rpcClientAdapter) invokeRPCRequest(ctx context.Context, req *common.Message) (*common.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s request: %w", req.MsgType, err)
	}

	// the transports are not context aware, the call is abandoned when ctx ends
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := a.transport.Send(a.shardId, reqBytes)
		done <- result{data, err}
	}()

	var respBytes []byte
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		respBytes = r.data
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("failed to deserialize %s response: %w", req.MsgType, err)
	}

	if err := resp.StoreError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}
	return resp, nil
}
