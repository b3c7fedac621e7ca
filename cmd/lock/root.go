package lock

import (
	"context"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/spf13/cobra"
)

var (
	locks lockmgr.ILockManager

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Acquire, renew and release locks",
		Long: util.WrapString(`Acquire, renew and release named locks. The lock records are kept in the storage selected with --backend, every process using the same storage and lock name contends for the same lock.`),
		PersistentPreRunE: setupLockClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(renewCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(existsCmd)
	LockCommands.AddCommand(runCmd)

	util.SetupBackendFlags(LockCommands)
	LockCommands.PersistentFlags().Duration("retry-interval", lockmgr.DefaultRetryInterval, util.WrapString("Pause between two attempts of a waiting acquire"))
}

// setupLockClient opens the storage and creates the lock manager
func setupLockClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	s, closer, err := util.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	util.AddCleanup(closer)
	locks = util.NewLockManager(s)
	return nil
}

// callContext bounds a single lock operation by the configured timeout
func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if t := util.Timeout(); t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}
