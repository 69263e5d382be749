package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/tsheet/internal/auth"
	"github.com/Tiliavir/tsheet/internal/config"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/logging"
)

// clock is the time source for default dates and windows.
var clock = time.Now

// app carries the global flags and the lazily built wiring shared by every
// subcommand.
type app struct {
	ctx        context.Context
	configPath string
	server     string
	logLevel   string
	now        func() time.Time

	env *env
}

// env is the wiring built from configuration on first use.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	session *auth.Session
	client  *gateway.Client
}

// setup loads configuration, applies flag overrides and opens the persisted
// session. Logs go to the command's stderr.
func (a *app) setup(cmd *cobra.Command) (*env, error) {
	if a.env != nil {
		return a.env, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.server != "" {
		cfg.Server.BaseURL = a.server
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.New(cfg.Log, cmd.ErrOrStderr())
	session, err := auth.Open(cfg.Auth.SessionFile)
	if err != nil {
		return nil, err
	}
	client, err := gateway.New(gateway.Config{BaseURL: cfg.Server.BaseURL, Timeout: cfg.Server.Timeout}, session, log)
	if err != nil {
		return nil, err
	}
	a.env = &env{cfg: cfg, log: log, session: session, client: client}
	return a.env, nil
}

// NewRootCommand builds the tsheet command tree.
func NewRootCommand(ctx context.Context) *cobra.Command {
	a := &app{ctx: ctx, now: clock}
	root := &cobra.Command{
		Use:   "tsheet",
		Short: "tsheet – track working hours against a time sheet server",
		Long: `tsheet is a terminal client for a time sheet REST server.
Records, users and the signed-in session are managed from the command line
or from an interactive table (tsheet tui). Settings live in ~/.tsheet/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.tsheet/config.json)")
	root.PersistentFlags().StringVar(&a.server, "server", "", "Server base URL, overrides server.base_url")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCommand(a),
		newRegisterCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newRecordsCommand(a),
		newUsersCommand(a),
		newReportCommand(a),
		newTUICommand(a),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() {
	if err := NewRootCommand(context.Background()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
