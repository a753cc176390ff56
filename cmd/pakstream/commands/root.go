// Package commands implements the pakstream command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/pakstream/config"
)

// Version information, set by main.
var (
	Version = "dev"
	Commit  = "none"
)

// app carries state shared by all commands.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the root command with os.Args.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pakstream",
		Short: "Create, host and stream PAK asset archives",
		Long: `pakstream packs content directories into PAK archives, serves them from
a file host and streams them into a virtual file namespace.

Configuration is read from --config (TOML, YAML or JSON), or from
./pakstream.{toml,yaml,json} when present. Every key can be overridden
from the environment, for example:

  PAKSTREAM_ASSETSTREAMER_SERVERHOST=10.0.0.5:8081 pakstream stream Level01 --mode remote`,
		Version:           fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./pakstream.toml if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text, json (overrides config)")

	root.AddCommand(
		newPackCmd(a),
		newLsCmd(a),
		newServeCmd(a),
		newStreamCmd(a),
		newKeygenCmd(a),
	)
	return root
}

// setup loads configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		v.Set(config.KeyLogLevel, a.logLevel)
	}
	if a.logFormat != "" {
		v.Set(config.KeyLogFormat, a.logFormat)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Logging)
	slog.SetDefault(a.logger)
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("configuration loaded", "file", used)
	}
	return nil
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, cfg config.Logging) *slog.Logger {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	formatter := log.TextFormatter
	if strings.EqualFold(cfg.Format, "json") {
		formatter = log.JSONFormatter
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          "pakstream",
	})
	return slog.New(handler)
}
