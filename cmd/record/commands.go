package record

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/spf13/cobra"
)

var (
	showCmd = &cobra.Command{
		Use:   "show [name]",
		Short: "Print the stored record of a lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(cmd)
			defer cancel()

			key := lockmgr.StorageKey(args[0])
			data, err := recordStore.Read(ctx, key)
			if store.IsNotFound(err) {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			if err != nil {
				return err
			}

			rec, err := lockmgr.DecodeRecord(data)
			if err != nil {
				fmt.Printf("key=%s, found=true, raw=%s\n", key, data)
				return err
			}
			fmt.Println(describe(key, rec, time.Now()))
			return nil
		},
	}

	keyCmd = &cobra.Command{
		Use:   "key [name]",
		Short: "Print the storage key of a lock",
		Args:  cobra.ExactArgs(1),
		// no storage needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(lockmgr.StorageKey(args[0]))
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [name]",
		Short: "Remove the record of a lock regardless of its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext(cmd)
			defer cancel()

			key := lockmgr.StorageKey(args[0])
			err := recordStore.Delete(ctx, key)
			if store.IsNotFound(err) {
				fmt.Printf("key=%s, deleted=false\n", key)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, deleted=true\n", key)
			return nil
		},
	}
)

// describe renders a record for humans
func describe(key string, rec lockmgr.Record, now time.Time) string {
	token := "<none>"
	if rec.Token != nil {
		token = *rec.Token
	}

	expires := "never"
	if at, ok := rec.ExpiresAt(); ok {
		expires = at.UTC().Format(time.RFC3339Nano)
	}

	return fmt.Sprintf("key=%s, found=true, token=%s, expires=%s, expired=%t", key, token, expires, rec.ExpiredAt(now))
}

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
