package record

import (
	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/spf13/cobra"
)

var (
	recordStore store.IStore

	// RecordCommands represents the record command group
	RecordCommands = &cobra.Command{
		Use:               "record",
		Short:             "Inspect and remove raw lock records",
		PersistentPreRunE: setupRecordClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupBackendFlags(RecordCommands)

	RecordCommands.AddCommand(showCmd)
	RecordCommands.AddCommand(keyCmd)
	RecordCommands.AddCommand(deleteCmd)
}

// setupRecordClient opens the storage selected with --backend
func setupRecordClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	s, closer, err := util.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	recordStore = s
	util.AddCleanup(closer)
	return nil
}
