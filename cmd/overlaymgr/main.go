// overlaymgr serves the overlay network directory over HTTP and publishes it
// to the local DNS resolver as a hosts file.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caldog20/overlaymgr/config"
	"github.com/caldog20/overlaymgr/store"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "overlaymgr",
		Short:        "Overlay network manager: status API, client configs and DNS publishing",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./"+config.ConfigFileName+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log_level)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newServeCmd(opts),
		newPublishCmd(opts),
		newStatusCmd(opts),
		newAddServerCmd(opts),
		newAddClientCmd(opts),
	)
	return cmd
}

// env is what every subcommand needs once the configuration is loaded.
type env struct {
	conf   *config.ServerConfig
	logger *slog.Logger
	store  store.Store
}

func (o *options) setup(cmd *cobra.Command) (*env, error) {
	conf, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	level := conf.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), o.logFormat, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	st, err := store.Open(conf.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &env{conf: conf, logger: logger, store: st}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing database", "error", err)
	}
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
