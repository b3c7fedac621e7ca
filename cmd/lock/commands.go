package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/spf13/cobra"
)

var (
	acquireTTL         time.Duration
	acquireWait        bool
	acquireWaitTimeout time.Duration
	renewTTL           time.Duration

	acquireCmd = &cobra.Command{
		Use:   "acquire [name]",
		Short: "Acquire a lock and print its token",
		Long:  "Acquire a lock and print the token of the new owner. The token is needed to renew the lock or to check whether it is still held.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	renewCmd = &cobra.Command{
		Use:   "renew [name] [token]",
		Short: "Extend the expiry of a held lock",
		Args:  cobra.ExactArgs(2),
		RunE:  runRenew,
	}

	releaseCmd = &cobra.Command{
		Use:   "release [name]",
		Short: "Release a lock",
		Long:  "Release a lock by deleting its record. The owner is not checked.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	existsCmd = &cobra.Command{
		Use:   "exists [name] [token]",
		Short: "Check whether a lock is held with the given token",
		Long:  "Check whether a lock is held with the given token. Prints true or false and exits with status 1 if the lock is not held.",
		Args:  cobra.ExactArgs(2),
		RunE:  runExists,
	}
)

func init() {
	acquireCmd.Flags().DurationVar(&acquireTTL, "ttl", 30*time.Second, "Lifetime of the lock, 0 for a lock that never expires")
	acquireCmd.Flags().BoolVar(&acquireWait, "wait", false, "Wait until the lock becomes free")
	acquireCmd.Flags().DurationVar(&acquireWaitTimeout, "wait-timeout", 0, "Give up waiting after this duration, 0 waits forever")

	renewCmd.Flags().DurationVar(&renewTTL, "ttl", 30*time.Second, "New lifetime of the lock, counted from now")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	h := lockmgr.NewHandle(args[0], lockmgr.WithTTL(acquireTTL))

	if err := acquire(cmd, h, acquireWait, acquireWaitTimeout); err != nil {
		return fmt.Errorf("failed to acquire lock %q: %w", h.Name(), err)
	}

	token, err := h.Token()
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// acquire takes the lock once, or waits for it if wait is set
func acquire(cmd *cobra.Command, h *lockmgr.Handle, wait bool, waitTimeout time.Duration) error {
	if !wait {
		ctx, cancel := callContext(cmd)
		defer cancel()
		return locks.Acquire(ctx, h)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, waitTimeout)
		defer cancel()
	}
	return locks.WaitAndAcquire(ctx, h)
}

func runRenew(cmd *cobra.Command, args []string) error {
	h := lockmgr.NewHandle(args[0], lockmgr.WithToken(args[1]))

	ctx, cancel := callContext(cmd)
	defer cancel()

	if err := locks.Renew(ctx, h, renewTTL); err != nil {
		return fmt.Errorf("failed to renew lock %q: %w", h.Name(), err)
	}
	fmt.Printf("renewed %s for %s\n", h.Name(), renewTTL)
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	h := lockmgr.NewHandle(args[0])

	ctx, cancel := callContext(cmd)
	defer cancel()

	if err := locks.Release(ctx, h); err != nil {
		return fmt.Errorf("failed to release lock %q: %w", h.Name(), err)
	}
	fmt.Printf("released %s\n", h.Name())
	return nil
}

func runExists(cmd *cobra.Command, args []string) error {
	h := lockmgr.NewHandle(args[0], lockmgr.WithToken(args[1]))

	ctx, cancel := callContext(cmd)
	defer cancel()

	ok, err := locks.Exists(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to check lock %q: %w", h.Name(), err)
	}
	fmt.Println(ok)
	if !ok {
		return errNotHeld
	}
	return nil
}
