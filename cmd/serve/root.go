package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/server"
	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/ValentinKolb/dLock/rpc/transport/http"
	"github.com/ValentinKolb/dLock/rpc/transport/tcp"
	"github.com/ValentinKolb/dLock/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dLock storage server",
		Long:    `Start the dLock storage server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DLOCK_<flag> (e.g. DLOCK_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	key := "shards"
	ServeCmd.PersistentFlags().String(key, "1=boltstore", cmdUtil.WrapString(fmt.Sprintf("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: %s", shardTypeNames())))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir holds the files of the fsstore, boltstore and sqlstore shards and the raft data of dstore shards"))

	key = "sql-driver"
	ServeCmd.PersistentFlags().String(key, "postgres", cmdUtil.WrapString("(sqlstore) Database driver used with --sql-dsn, sqlite3 or postgres"))

	key = "sql-dsn"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(sqlstore) Data source name of the database. If empty every sqlstore shard uses its own sqlite file in the data dir"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Election and heartbeat timeouts are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically, in applied raft log entries. 0 disables automatic snapshots (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of log entries kept after a snapshot. Recommended value is about 1/2 of SnapshotEntries"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique name of this node (e.g. 'node-1'), it must appear in --cluster-members"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ClusterMembers is a comma-separated list of raft addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout of a single store operation in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, /tmp/dlock.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

func shardTypeNames() string {
	names := make([]string, len(common.ShardTypes))
	for i, t := range common.ShardTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shards, err := ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.SQLDriver = viper.GetString("sql-driver")
	serveCmdConfig.SQLDSN = viper.GetString("sql-dsn")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if !serveCmdConfig.HasReplicatedShard() {
		return nil
	}

	// only dstore shards need the raft identity
	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("--replica-id is required for dstore shards")
	}
	serveCmdConfig.ReplicaID = common.ReplicaID(id)

	members, err := ParseClusterMembers(viper.GetString("cluster-members"))
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("--cluster-members is required for dstore shards")
	}
	serveCmdConfig.ClusterMembers = members

	if _, ok := members[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica %q in cluster members", id)
	}
	return nil
}

// ParseShards parses a comma-separated list of ID=TYPE pairs
func ParseShards(s string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	for _, shardConfig := range strings.Split(s, ",") {
		if strings.TrimSpace(shardConfig) == "" {
			continue
		}
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %w", parts[0], err)
		}
		if shardID == 0 {
			return nil, fmt.Errorf("invalid shard ID 0, shard ids start at 1")
		}

		shardType, err := common.ParseShardType(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}

		shards = append(shards, common.ServerShard{ShardID: shardID, Type: shardType})
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

// ParseClusterMembers parses a comma-separated list of name=address pairs into
// a map from replica id to raft address
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		if strings.TrimSpace(member) == "" {
			continue
		}
		parts := strings.Split(member, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected NAME=ADDRESS)", member)
		}
		id := common.ReplicaID(strings.TrimSpace(parts[0]))
		if _, dup := members[id]; dup {
			return nil, fmt.Errorf("duplicate cluster member %s", parts[0])
		}
		members[id] = strings.TrimSpace(parts[1])
	}
	return members, nil
}

// run starts the storage server and stops it on SIGINT or SIGTERM
func run(cmd *cobra.Command, _ []string) error {
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPDefaultServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		server.Logger.Infof("shutting down")
		_ = serv.Close()
	}()

	err := serv.Serve()
	stop()
	return err
}
