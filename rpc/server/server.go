package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/boltstore"
	"github.com/ValentinKolb/dLock/lib/store/dstore"
	"github.com/ValentinKolb/dLock/lib/store/fsstore"
	"github.com/ValentinKolb/dLock/lib/store/lstore"
	"github.com/ValentinKolb/dLock/lib/store/sqlstore"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// boltOpenTimeout bounds the wait for the file lock of a bolt shard
const boltOpenTimeout = 5 * time.Second

// shardSizers backs the dlock_shard_records gauges. The gauges are process
// wide, so the sizer of the most recently started shard with an id wins.
var shardSizers = xsync.NewMapOf[uint64, store.ISizer]()

// serverShard is a shard of the RPC server: the store it encapsulates and
// the adapter that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer serves the shards of a storage server over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	mu       sync.Mutex
	nodeHost *dragonboat.NodeHost
	closers  []io.Closer
}

// NewRPCServer creates a new RPC server
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// Serve initializes the shards and serves requests until Close is called
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.closeShards()
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and closes all shards
func (s *RPCServer) Close() error {
	err := s.transport.Close()
	s.closeShards()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) registerTransportHandler() {
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		shard, ok := s.shards.Load(shardId)
		if !ok {
			respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("shard %d not found", shardId))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			metrics.GetOrCreateCounter(fmt.Sprintf(`dlock_rpc_requests_total{type=%q}`, msg.MsgType)).Inc()
			respMsg = shard.Adapter.Handle(ctx, &msg, shard.Store)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCInternalError, fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	if s.config.DataDir != "" {
		if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	// Only create the NodeHost if we have replicated shards
	if s.config.HasReplicatedShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.mu.Lock()
		s.nodeHost = nodeHost
		s.mu.Unlock()
	}

	for _, shardConfig := range s.config.Shards {
		st, err := s.createShardStore(shardConfig)
		if err != nil {
			return fmt.Errorf("failed to create shard %d (%s): %w", shardConfig.ShardID, shardConfig.Type, err)
		}
		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		if sz, ok := st.(store.ISizer); ok {
			registerSizeGauge(shardConfig.ShardID, sz)
		}
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("dLock setup completed successfully")

	s.registerTransportHandler()
	return nil
}

// createShardStore opens the backend of one shard
func (s *RPCServer) createShardStore(shard common.ServerShard) (store.IStore, error) {
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	switch shard.Type {
	case common.ShardTypeLocal:
		return lstore.NewLocalStore(), nil

	case common.ShardTypeFile:
		return fsstore.NewLocalFileStore(s.config.ShardPath(shard))

	case common.ShardTypeBolt:
		st, err := boltstore.NewBoltStore(s.config.ShardPath(shard), boltOpenTimeout)
		if err != nil {
			return nil, err
		}
		s.addCloser(st)
		return st, nil

	case common.ShardTypeSQL:
		driver, dsn := s.config.SQLDriver, s.config.SQLDSN
		if dsn == "" {
			driver, dsn = sqlstore.DriverSQLite, "file:"+s.config.ShardPath(shard)+"?_busy_timeout=5000"
		}
		st, err := sqlstore.NewSQLStore(context.Background(), driver, dsn)
		if err != nil {
			return nil, err
		}
		s.addCloser(st)
		return st, nil

	case common.ShardTypeReplicated:
		if s.nodeHost == nil {
			return nil, fmt.Errorf("node host is nil, cannot create replicated store")
		}
		if err := s.nodeHost.StartConcurrentReplica(
			s.config.ClusterMembers,
			false,
			dstore.CreateStateMachineFactory(),
			s.config.ToDragonboatConfig(shard.ShardID),
		); err != nil {
			return nil, err
		}
		return dstore.NewDistributedStore(s.nodeHost, shard.ShardID, timeout), nil

	default:
		return nil, fmt.Errorf("invalid shard type: %s", shard.Type)
	}
}

// registerSizeGauge exports the number of records held by a shard
func registerSizeGauge(shardID uint64, sz store.ISizer) {
	shardSizers.Store(shardID, sz)
	metrics.GetOrCreateGauge(fmt.Sprintf(`dlock_shard_records{shard="%d"}`, shardID), func() float64 {
		sz, ok := shardSizers.Load(shardID)
		if !ok {
			return 0
		}
		n, err := sz.Size()
		if err != nil {
			Logger.Warningf("failed to read size of shard %d: %v", shardID, err)
			return 0
		}
		return float64(n)
	})
}

func (s *RPCServer) addCloser(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

// closeShards releases the files and databases of all shards
func (s *RPCServer) closeShards() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shards.Range(func(id uint64, shard serverShard) bool {
		mine, ok := shard.Store.(store.ISizer)
		if !ok {
			return true
		}
		shardSizers.Compute(id, func(old store.ISizer, loaded bool) (store.ISizer, bool) {
			return old, !loaded || old == mine
		})
		return true
	})

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			Logger.Warningf("failed to close shard: %v", err)
		}
	}
	s.closers = nil

	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
}
