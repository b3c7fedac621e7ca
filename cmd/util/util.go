package util

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/boltstore"
	"github.com/ValentinKolb/dLock/lib/store/fsstore"
	"github.com/ValentinKolb/dLock/lib/store/lstore"
	"github.com/ValentinKolb/dLock/lib/store/redisstore"
	"github.com/ValentinKolb/dLock/lib/store/sqlstore"
	"github.com/ValentinKolb/dLock/rpc/client"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/ValentinKolb/dLock/rpc/transport/http"
	"github.com/ValentinKolb/dLock/rpc/transport/tcp"
	"github.com/ValentinKolb/dLock/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// Backends lists the values of the --backend flag
var Backends = []string{"mem", "fs", "bolt", "redis", "sql", "rpc"}

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds the RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single storage call"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("(rpc backend) The address of the dLock server. Multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("(rpc backend) Simultaneous connections per endpoint, ignored for http"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("(rpc backend) How many times to try a request"))

	key = "shard"
	cmd.PersistentFlags().Int(key, 1, WrapString("(rpc backend) ID of the shard holding the lock records"))
}

// SetupBackendFlags adds the flags selecting and configuring the lock storage
func SetupBackendFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, "fs", WrapString(fmt.Sprintf("Storage for the lock records, one of %s", strings.Join(Backends, ", "))))

	key = "path"
	cmd.PersistentFlags().String(key, "", WrapString("(fs, bolt backend) Directory or database file, defaults to ./.dlock or ./dlock.db"))

	key = "redis-addr"
	cmd.PersistentFlags().String(key, "localhost:6379", WrapString("(redis backend) Address of the redis server"))

	key = "redis-prefix"
	cmd.PersistentFlags().String(key, "dlock:", WrapString("(redis backend) Prefix of all redis keys"))

	key = "sql-driver"
	cmd.PersistentFlags().String(key, sqlstore.DriverSQLite, WrapString("(sql backend) Database driver, sqlite3 or postgres"))

	key = "sql-dsn"
	cmd.PersistentFlags().String(key, "file:dlock.sqlite?_busy_timeout=5000", WrapString("(sql backend) Data source name of the database"))

	key = "atomic-create"
	cmd.PersistentFlags().Bool(key, true, WrapString("Create new records with the backend's create-if-absent primitive where available, closing the race between two acquirers"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))

	SetupRPCClientFlags(cmd)
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dlock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper and applies the log level
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if level := viper.GetString("log-level"); level != "" {
		return common.InitLoggers(level)
	}
	return nil
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("transport-retries"),
		Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
		ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates a client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// Timeout returns the configured timeout of a storage call
func Timeout() time.Duration {
	return time.Duration(viper.GetInt("timeout")) * time.Second
}

// --------------------------------------------------------------------------
// Backends
// --------------------------------------------------------------------------

// OpenStore opens the backend selected with --backend. The returned close
// function releases files, connections and database handles.
func OpenStore(ctx context.Context) (store.IStore, func() error, error) {
	noop := func() error { return nil }
	backend := viper.GetString("backend")
	path := viper.GetString("path")

	Logger.Debugf("opening %s backend", backend)

	switch backend {
	case "mem":
		return lstore.NewLocalStore(), noop, nil

	case "fs":
		if path == "" {
			path = ".dlock"
		}
		s, err := fsstore.NewLocalFileStore(path)
		return s, noop, err

	case "bolt":
		if path == "" {
			path = "dlock.db"
		}
		s, err := boltstore.NewBoltStore(path, Timeout())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: viper.GetString("redis-addr")})
		s := redisstore.NewRedisStore(rdb,
			redisstore.WithKeyPrefix(viper.GetString("redis-prefix")),
			redisstore.WithTimeout(Timeout()),
		)
		return s, rdb.Close, nil

	case "sql":
		s, err := sqlstore.NewSQLStore(ctx, viper.GetString("sql-driver"), viper.GetString("sql-dsn"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "rpc":
		ser, err := GetSerializer()
		if err != nil {
			return nil, nil, err
		}
		t, err := GetTransport()
		if err != nil {
			return nil, nil, err
		}
		s, err := client.NewRPCStore(GetShardID(), *GetClientConfig(), t, ser)
		if err != nil {
			return nil, nil, err
		}
		return s, t.Close, nil

	default:
		return nil, nil, fmt.Errorf("invalid backend %q, must be one of %s", backend, strings.Join(Backends, ", "))
	}
}

// NewLockManager creates the lock engine on top of s
func NewLockManager(s store.IStore) lockmgr.ILockManager {
	var opts []lockmgr.Option
	if viper.GetBool("atomic-create") {
		opts = append(opts, lockmgr.WithAtomicCreate())
	}
	if d := viper.GetDuration("retry-interval"); d > 0 {
		opts = append(opts, lockmgr.WithRetryInterval(d))
	}
	return lockmgr.NewLockManager(s, opts...)
}

// ExitCodeError makes the command exit with Code without printing an error
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var (
	cleanupMu sync.Mutex
	cleanups  []func() error
)

// AddCleanup registers fn to run once the command has finished, whether it
// failed or not. Cobra skips post run hooks after an error, so storage handles
// are closed this way.
func AddCleanup(fn func() error) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanups = append(cleanups, fn)
}

// RunCleanups runs the registered cleanups in reverse order and forgets them.
func RunCleanups() error {
	cleanupMu.Lock()
	fns := cleanups
	cleanups = nil
	cleanupMu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
