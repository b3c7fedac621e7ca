package common

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ReplicaID maps a node name to a raft replica id.
// Numeric names are used as they are, other names are hashed with xxhash.
// Dragonboat does not accept 0 as replica id, so 0 is never returned.
func ReplicaID(name string) uint64 {
	if id, err := strconv.ParseUint(name, 10, 64); err == nil && id != 0 {
		return id
	}
	if id := xxhash.Sum64String(name); id != 0 {
		return id
	}
	return 1
}
