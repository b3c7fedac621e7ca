package common

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	dir := filepath.Join(c.DataDir, "raft")
	return config.NodeHostConfig{
		WALDir:         dir,
		NodeHostDir:    dir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShardType selects the storage backend of a shard
type ServerShardType string

const (
	ShardTypeLocal      ServerShardType = "lstore"    // in memory, lost on restart
	ShardTypeFile       ServerShardType = "fsstore"   // one file per record below the data dir
	ShardTypeBolt       ServerShardType = "boltstore" // bbolt file below the data dir
	ShardTypeSQL        ServerShardType = "sqlstore"  // sqlite file below the data dir, or the configured database
	ShardTypeReplicated ServerShardType = "dstore"    // replicated with raft across the cluster
)

// ShardTypes lists all valid shard types
var ShardTypes = []ServerShardType{ShardTypeLocal, ShardTypeFile, ShardTypeBolt, ShardTypeSQL, ShardTypeReplicated}

// ParseShardType returns the ServerShardType named s
func ParseShardType(s string) (ServerShardType, error) {
	for _, t := range ShardTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid shard type %q, must be one of %v", s, ShardTypes)
}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type is the storage backend of the shard
	Type ServerShardType
}

// ServerConfig holds all configuration parameters of the storage server.
type ServerConfig struct {
	Shards []ServerShard

	// Dragonboat parameters (only used for dstore shards)
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// DataDir holds the files of all persistent shards
	DataDir string

	// SQL settings for sqlstore shards, an empty DSN means one sqlite file per shard
	SQLDriver string
	SQLDSN    string

	// timeout of a single store operation
	TimeoutSecond int64

	// address the transport listens on
	Endpoint string

	// Logging configuration
	LogLevel string
}

// HasReplicatedShard checks if the configuration contains any raft shards
func (c *ServerConfig) HasReplicatedShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeReplicated {
			return true
		}
	}
	return false
}

// ShardPath returns the file or directory a persistent shard keeps its data in
func (c *ServerConfig) ShardPath(shard ServerShard) string {
	name := fmt.Sprintf("shard-%d", shard.ShardID)
	switch shard.Type {
	case ShardTypeBolt:
		name += ".db"
	case ShardTypeSQL:
		name += ".sqlite"
	}
	return filepath.Join(c.DataDir, name)
}

// Validate checks the configuration for conflicting settings
func (c *ServerConfig) Validate() error {
	if len(c.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}

	seen := make(map[uint64]bool)
	sqlShards := 0
	for _, shard := range c.Shards {
		if seen[shard.ShardID] {
			return fmt.Errorf("duplicate shard id %d", shard.ShardID)
		}
		seen[shard.ShardID] = true
		if shard.Type == ShardTypeSQL {
			sqlShards++
		}
	}

	// all sqlstore shards would share one table
	if c.SQLDSN != "" && sqlShards > 1 {
		return fmt.Errorf("only one sqlstore shard can use the sql dsn, got %d", sqlShards)
	}

	if c.HasReplicatedShard() {
		if _, ok := c.ClusterMembers[c.ReplicaID]; !ok {
			return fmt.Errorf("replica id %d is not a cluster member", c.ReplicaID)
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder
	addSection, addField := configWriters(&sb)

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	addSection("Storage")
	addField("Data Directory", c.DataDir)
	if c.SQLDSN != "" {
		addField("SQL Driver", c.SQLDriver)
	}

	if c.HasReplicatedShard() {
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		addSection("Cluster")
		sb.WriteString("  Initial Cluster Members:\n")

		keys := make([]uint64, 0, len(c.ClusterMembers))
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "    Node %d: %s\n", k, c.ClusterMembers[k])
		}
	}
	return sb.String()
}

// configWriters returns the helpers the String methods render sections and fields with
func configWriters(sb *strings.Builder) (addSection func(title string), addField func(name, value string)) {
	addSection = func(title string) {
		fmt.Fprintf(sb, "\n%s\n", strings.ToUpper(title))
	}
	addField = func(name, value string) {
		fmt.Fprintf(sb, "  %-22s: %s\n", name, value)
	}
	return addSection, addField
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := configWriters(&sb)

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
