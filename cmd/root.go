package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ValentinKolb/dLock/cmd/lock"
	"github.com/ValentinKolb/dLock/cmd/record"
	"github.com/ValentinKolb/dLock/cmd/serve"
	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dlock",
		Short: "best-effort distributed locks on shared storage",
		Long: fmt.Sprintf(`dLock (v%s)

Named mutual-exclusion locks stored as small records in a shared
storage backend (files, bbolt, redis, SQL or the dLock storage server).
Locks expire after their ttl, so a crashed holder cannot block others
forever.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dLock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dLock v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(record.RecordCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer of the storage rpc (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport of the storage rpc (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := execute()

	var exitErr *util.ExitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	if err != nil {
		os.Exit(1)
	}
}

// execute runs the selected command and closes the storage it opened
func execute() error {
	err := RootCmd.Execute()
	if cerr := util.RunCleanups(); cerr != nil {
		util.Logger.Warningf("cleanup failed: %v", cerr)
	}
	return err
}
