// Package redisstore implements store.IStore on redis using go-redis.
// Records are plain string keys without a redis TTL: expiry is decided by the
// lock engine from the record content, so a record outliving its expire
// field is harmless. Create maps to SETNX.
//
// Any redis.UniversalClient works, which covers single nodes, sentinel
// setups and clusters.
package redisstore
