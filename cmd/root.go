package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/xdb/cmd/kv"
	"github.com/ValentinKolb/xdb/cmd/serve"
	"github.com/ValentinKolb/xdb/cmd/util"
	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "xdb",
		Short: "in-memory key-value store",
		Long: fmt.Sprintf(`xDB (v%s)

An in-memory key-value store with expiring keys, multiple named databases
and snapshot persistence, served over a line based text protocol.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of xDB",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xDB v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, common.DefaultTransport, util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
