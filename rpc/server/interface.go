package server

import (
	"context"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
)

// IRPCServerAdapter translates request messages into calls on a store
type IRPCServerAdapter interface {
	// Handle executes req against s and returns the response.
	// Failures are reported inside the response, never as a nil message.
	Handle(ctx context.Context, req *common.Message, s store.IStore) (resp *common.Message)
}
