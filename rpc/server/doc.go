// Package server implements the storage server of dLock. It opens the
// configured shards, each backed by one of the store implementations, and
// answers Read, Write, Delete and Create requests for them over an
// IRPCServerTransport.
//
// The server never interprets lock records. Lock semantics live in package
// lockmgr on the client side, which uses a shard through client.NewRPCStore.
//
// Shard types:
//
//   - lstore: in memory, lost on restart
//   - fsstore: one file per record in DataDir/shard-N
//   - boltstore: a bbolt file DataDir/shard-N.db
//   - sqlstore: the configured SQL database, or a sqlite file DataDir/shard-N.sqlite
//   - dstore: replicated with raft across ClusterMembers
//
// Usage Example:
//
//	config := common.ServerConfig{
//		Shards: []common.ServerShard{
//			{ShardID: 1, Type: common.ShardTypeBolt},
//			{ShardID: 2, Type: common.ShardTypeLocal},
//		},
//		DataDir:       "/var/lib/dlock",
//		Endpoint:      "0.0.0.0:8080",
//		TimeoutSecond: 5,
//		LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPDefaultServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//		log.Fatalf("Server error: %v", err)
//	}
//
// Create requests are only answered for backends that implement
// store.ICreator. Every other backend replies with RetCUnsupportedOperation
// and the lock engine falls back to a plain Write.
package server
