// Command digitarc browses and edits the collection hierarchy of a
// digitization service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/digitarc/pkg/applog"
	"github.com/vanderheijden86/digitarc/pkg/config"
	"github.com/vanderheijden86/digitarc/pkg/directory"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
}

// env is what every command that talks to the backend needs. The caller
// must defer Close.
type env struct {
	cfg     config.Config
	cfgPath string
	logger  *slog.Logger
	closer  io.Closer
}

func (e *env) Close() error {
	return e.closer.Close()
}

// client builds a directory client from the API settings.
func (e *env) client() (*directory.Client, error) {
	c, err := directory.New(e.cfg.API.BaseURL,
		directory.WithToken(e.cfg.API.Token),
		directory.WithTimeout(e.cfg.API.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	return c, nil
}

// loadEnv reads the config and opens the log file. operation tags the log
// session so concurrent invocations can be told apart.
func loadEnv(opts *rootOptions, operation string) (*env, error) {
	path := config.DiscoverPath(opts.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	level, err := applog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	session := operation + "-" + uuid.New().String()[:8]
	logger, closer, err := applog.Open(cfg.Log.File, session, level)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "path", path, "api", cfg.API.BaseURL)
	return &env{cfg: cfg, cfgPath: path, logger: logger, closer: closer}, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "digitarc",
		Short:        "Browse and edit the collection tree of a digitization service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: discovered)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newTUICmd(opts),
		newTreeCmd(opts),
		newMkcollCmd(opts),
		newDevserverCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "digitarc %s\n", version)
		},
	}
}
