package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTRead:
		val, err := s.Read(ctx, req.Key)
		return common.NewReadResponse(val, err)
	case common.MsgTWrite:
		err := s.Write(ctx, req.Key, req.Value)
		return common.NewWriteResponse(err)
	case common.MsgTDelete:
		err := s.Delete(ctx, req.Key)
		return common.NewDeleteResponse(err)
	case common.MsgTCreate:
		creator, ok := s.(store.ICreator)
		if !ok {
			return common.NewCreateResponse(false, store.NewError(store.RetCUnsupportedOperation, "backend cannot create atomically"))
		}
		created, err := creator.Create(ctx, req.Key, req.Value)
		return common.NewCreateResponse(created, err)
	default:
		return common.NewErrorResponse(
			store.RetCInvalidOperation,
			fmt.Sprintf("unsupported message type: %s", req.MsgType),
		)
	}
}
