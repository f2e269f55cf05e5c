package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pacoapp/tesp/client"
	"github.com/pacoapp/tesp/cmd/gen"
	"github.com/pacoapp/tesp/internal/env"
)

var (
	// Optional TOML config file
	configFile string

	// The TESP server to talk to, these override the config
	host           string
	port           int
	connectTimeout time.Duration
	chunkTimeout   time.Duration

	debug bool
)

var RootCmd = &cobra.Command{
	Use:   "tesp",
	Short: "Upload Paco events over TESP",
	Long: `Upload Paco events to a collection server over TESP, a small framed
protocol carried on a raw TCP connection.`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&configFile, "config", "c", "", "TOML config file")
	flags.StringVarP(&host, "host", "a", env.DefaultHost, "The TESP server host")
	flags.IntVarP(&port, "port", "p", env.DefaultPort, "The TESP server port")
	flags.DurationVar(&connectTimeout, "connect-timeout", client.DefaultConnectTimeout, "Connection timeout")
	flags.DurationVar(&chunkTimeout, "chunk-timeout", client.DefaultChunkTimeout, "Maximum stall while a frame is partially received")
	flags.BoolVar(&debug, "debug", false, "Log at debug level")

	RootCmd.AddCommand(SendCmd)
	RootCmd.AddCommand(PingCmd)
	RootCmd.AddCommand(RelayCmd)
	RootCmd.AddCommand(URLCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setup resolves the config, letting flags that were set explicitly win, and
// builds the logger.
func setup(ctx context.Context, cmd *cobra.Command) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx, configFile)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		conf.Host = host
	}
	if flags.Changed("port") {
		conf.Port = port
	}
	if flags.Changed("connect-timeout") {
		conf.ConnectTimeout = connectTimeout
	}
	if flags.Changed("chunk-timeout") {
		conf.ChunkTimeout = chunkTimeout
	}
	if flags.Changed("debug") {
		conf.Debug = debug
	}

	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := env.MakeLogger(conf.Debug)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

func newClient(conf *env.Config, log *zap.Logger, opts ...client.Option) *client.Client {
	opts = append([]client.Option{
		client.WithConnectTimeout(conf.ConnectTimeout),
		client.WithChunkTimeout(conf.ChunkTimeout),
		client.WithMaxPayloadLen(conf.MaxPayloadLen),
		client.WithLogger(log.Named("client")),
	}, opts...)

	return client.New(conf.Host, conf.Port, opts...)
}
