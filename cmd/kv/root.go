package kv

import (
	"github.com/ValentinKolb/xdb/cmd/util"
	"github.com/ValentinKolb/xdb/rpc/client"
	"github.com/spf13/cobra"
)

var (
	kvClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the connection flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(pingCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(listDBsCmd)
	KeyValueCommands.AddCommand(saveCmd)
	KeyValueCommands.AddCommand(saveAllCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects to the server and selects the database given with --db
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	t, err := util.GetClientTransport(config.Transport)
	if err != nil {
		return err
	}

	kvClient, err = client.NewClient(*config, t)
	if err != nil {
		return err
	}

	if index := util.GetDatabaseIndex(); index != 0 {
		if _, err := kvClient.SelectDB(index); err != nil {
			_ = kvClient.Close()
			return err
		}
	}
	return nil
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if kvClient == nil {
		return nil
	}
	return kvClient.Close()
}
