// Package dstore implements a replicated record store using the Dragonboat RAFT
// consensus library. It provides a strongly consistent implementation of the
// store.IStore and store.ICreator interfaces that can operate across multiple nodes.
//
// Architecture:
//
//   - Store Client: Implements store.IStore. It serializes operations into commands,
//     proposes them to the consensus layer and converts the results back into
//     store errors.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine holding the raw records of one
//     shard in a concurrent map. Create is applied as a single log entry, which makes it
//     atomic across the whole cluster.
//
//   - Communication Protocol: Defined in the internal package.
//
// Write Operations:
//
//	1. The operation is serialized into a Command
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader replicates the command to a majority of followers
//	4. Once committed, the command is applied on every replica (Update in statemachine.go)
//	5. The result code is returned to the client
//
// Reads use SyncRead and are linearizable. Size uses StaleRead.
//
// When Dragonboat returns ErrSystemBusy, operations are retried after a short delay,
// up to 5 attempts. Each attempt is bounded by the configured timeout and the
// caller's context.
//
// Snapshots copy the record map in PrepareSnapshot and write it as JSON.
//
// Example:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	err = nh.StartConcurrentReplica(members, false, dstore.CreateStateMachineFactory(), shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
