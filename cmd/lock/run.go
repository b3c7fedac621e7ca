package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	runTTL         time.Duration
	runWait        bool
	runWaitTimeout time.Duration

	errNotHeld = &util.ExitCodeError{Code: 1}

	runCmd = &cobra.Command{
		Use:   "run [name] -- [command] [args...]",
		Short: "Run a command while holding a lock",
		Long: util.WrapString(`Acquire the lock, run the command and release the lock when the command exits. While the command runs the lock is refreshed every third of its ttl. If a refresh fails the lock is considered lost and the command is killed. The exit status of the command is passed on.`),
		Args: cobra.MinimumNArgs(2),
		RunE: runLocked,
	}
)

func init() {
	runCmd.Flags().DurationVar(&runTTL, "ttl", 30*time.Second, "Lifetime of the lock, refreshed while the command runs")
	runCmd.Flags().BoolVar(&runWait, "wait", false, "Wait until the lock becomes free")
	runCmd.Flags().DurationVar(&runWaitTimeout, "wait-timeout", 0, "Give up waiting after this duration, 0 waits forever")
}

func runLocked(cmd *cobra.Command, args []string) error {
	if runTTL <= 0 {
		return fmt.Errorf("--ttl must be positive: %w", lockmgr.ErrInvalidTTL)
	}

	l := lockmgr.NewLock(locks, lockmgr.NewHandle(args[0], lockmgr.WithTTL(runTTL)))
	if err := acquire(cmd, l.Handle(), runWait, runWaitTimeout); err != nil {
		return fmt.Errorf("failed to acquire lock %q: %w", args[0], err)
	}

	runErr := runWithKeepAlive(cmd.Context(), l, args[1], args[2:])

	// release with a fresh context, the command context may be canceled
	ctx, cancel := context.WithTimeout(context.Background(), max(util.Timeout(), time.Second))
	defer cancel()
	if err := l.Release(ctx); err != nil {
		util.Logger.Errorf("failed to release lock %q: %v", args[0], err)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return &util.ExitCodeError{Code: exitErr.ExitCode()}
	}
	return runErr
}

// runWithKeepAlive runs the command and refreshes the lock until the command exits.
// A failed refresh kills the command.
func runWithKeepAlive(parent context.Context, l *lockmgr.Lock, name string, args []string) error {
	if parent == nil {
		parent = context.Background()
	}
	g, ctx := errgroup.WithContext(parent)
	stopKeepAlive, stop := context.WithCancel(ctx)
	defer stop()

	g.Go(func() error {
		defer stop()

		child := exec.CommandContext(ctx, name, args...)
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		return child.Run()
	})

	g.Go(func() error {
		if err, ok := <-l.KeepAlive(stopKeepAlive, l.Handle().TTL()/3); ok {
			return fmt.Errorf("lost lock %q: %w", l.Handle().Name(), err)
		}
		return nil
	})

	return g.Wait()
}
