package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/xdb/cmd/util"
	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the xDB server",
		Long:    `Start the xDB server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is XDB_<flag> (e.g. XDB_MAX_CLIENTS=200)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	defaults := common.DefaultServerConfig()

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Endpoint, cmdUtil.WrapString("The address on which the server will listen (host:port for tcp, socket path for unix)"))

	key = "databases"
	ServeCmd.PersistentFlags().String(key, "main=main.xdb", cmdUtil.WrapString("Comma-separated list of databases in index order. Format: NAME=PATH, a NAME without PATH is persisted to NAME.xdb"))

	key = "max-databases"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxDatabases, cmdUtil.WrapString("Maximum number of databases"))

	key = "shards"
	ServeCmd.PersistentFlags().Int(key, defaults.NumShards, cmdUtil.WrapString("Number of shards of every database table"))

	key = "max-clients"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxClients, cmdUtil.WrapString("Maximum number of simultaneous client connections, further connections are closed on accept"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, defaults.TimeoutSecond, cmdUtil.WrapString("Idle timeout in seconds for client connections (0 = none)"))

	key = "autosave"
	ServeCmd.PersistentFlags().Duration(key, defaults.AutosaveInterval, cmdUtil.WrapString("Interval at which all databases are saved to disk"))

	key = "stop-grace-millisecond"
	ServeCmd.PersistentFlags().Int64(key, defaults.StopGraceMillisecond, cmdUtil.WrapString("How long to wait for open connections on shutdown before the final save"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, defaults.TCPNoDelay, cmdUtil.WrapString("Whether to enable TCP_NODELAY on client connections (tcp only)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, defaults.TCPKeepAliveSec, cmdUtil.WrapString("Keep-alive period in seconds for client connections (0 = os default, tcp only)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, defaults.TCPLingerSec, cmdUtil.WrapString("Linger time in seconds for client connections (-1 = os default, tcp only)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the Prometheus metrics endpoint (e.g. localhost:9100), empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	databases, err := common.ParseDatabases(viper.GetString("databases"))
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.Databases = databases
	serveCmdConfig.MaxDatabases = viper.GetInt("max-databases")
	serveCmdConfig.NumShards = viper.GetInt("shards")
	serveCmdConfig.MaxClients = viper.GetInt("max-clients")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.AutosaveInterval = viper.GetDuration("autosave")
	serveCmdConfig.StopGraceMillisecond = viper.GetInt64("stop-grace-millisecond")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.TCPLingerSec = viper.GetInt("tcp-linger")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")

	if err := serveCmdConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	return nil
}

// run starts the xDB server and blocks until it is stopped by SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	server.Logger.Infof("Starting xDB with configuration:\n%s", serveCmdConfig.String())

	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport)
	if err != nil {
		return err
	}

	serv := server.NewServer(serveCmdConfig, t)
	for _, database := range serveCmdConfig.Databases {
		if err := serv.AddDatabase(database.Name, database.Path); err != nil {
			_ = serv.Destroy()
			return err
		}
	}

	// a signal stops the server and flushes all databases to disk
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	destroyed := make(chan error, 1)
	go func() {
		sig := <-signals
		server.Logger.Infof("Received %s, shutting down", sig)
		destroyed <- serv.Destroy()
	}()

	if err := serv.Start(); err != nil {
		_ = serv.Destroy()
		return err
	}
	return <-destroyed
}
