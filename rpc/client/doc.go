// Package client implements a store.IStore that reaches a shard of a remote
// storage server over RPC. The lock engine runs on the client; the server
// only stores records, so any lockmgr.ILockManager can use a remote shard as
// its backend:
//
//	cfg := common.ClientConfig{
//		Endpoints:     []string{"localhost:8080"},
//		TimeoutSecond: 5,
//		RetryCount:    3,
//	}
//	s, err := client.NewRPCStore(1, cfg, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	locks := lockmgr.NewLockManager(s, lockmgr.WithAtomicCreate())
//
// Store errors returned by the server keep their RetCode, so
// store.IsNotFound and store.IsUnsupported work on the client side.
//
// The client is safe for concurrent use.
package client
