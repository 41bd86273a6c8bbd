package kv

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvClient.Ping(); err != nil {
				return err
			}
			fmt.Println("PONG")
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvClient.Set(args[0], args[1], viper.GetInt64("ttl")); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, found, err := kvClient.Get(args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("(nil)")
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existed, err := kvClient.Delete(args[0])
			if err != nil {
				return err
			}
			if existed {
				fmt.Println("deleted successfully")
			} else {
				fmt.Println("key not found")
			}
			return nil
		},
	}
	listDBsCmd = &cobra.Command{
		Use:   "listdbs",
		Short: "Lists all databases of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			databases, err := kvClient.ListDBs()
			if err != nil {
				return err
			}
			for _, database := range databases {
				fmt.Printf("%d\t%s\n", database.Index, database.Name)
			}
			return nil
		},
	}
	saveCmd = &cobra.Command{
		Use:   "save",
		Short: "Saves the selected database to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvClient.Save(); err != nil {
				return err
			}
			fmt.Println("saved successfully")
			return nil
		},
	}
	saveAllCmd = &cobra.Command{
		Use:   "saveall",
		Short: "Saves all databases to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvClient.SaveAll(); err != nil {
				return err
			}
			fmt.Println("all databases saved")
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Int64("ttl", 0, "Time to live of the key in seconds (0 = no expiry)")
}
