package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashureev/shopping-assistant/internal/config"
	"github.com/ashureev/shopping-assistant/internal/output"
	"github.com/ashureev/shopping-assistant/internal/session"
	"github.com/ashureev/shopping-assistant/internal/transport"
	"github.com/ashureev/shopping-assistant/internal/tui"
	"github.com/ashureev/shopping-assistant/internal/viewmodel"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Shopping assistant client",
	Long: `assistant submits shopping queries to the assistant backend and follows
the run live: agent activity, simulated browsing and the resulting list.

Without a subcommand it opens the interactive terminal UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tuiRun(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pf.String("config", "", "Config file (default ~/.config/shopping-assistant/config.yaml)")
	pf.String("api-url", config.DefaultAPIURL, "Backend HTTP base URL")
	pf.String("ws-url", "", "Push channel URL (default derived from --api-url)")
	pf.String("group", string(viewmodel.GroupByStore), "Group results by store or category")
	pf.String("log-file", "", "Write client logs to this file")

	_ = viper.BindPFlag("api_url", pf.Lookup("api-url"))
	_ = viper.BindPFlag("ws_url", pf.Lookup("ws-url"))
	_ = viper.BindPFlag("group", pf.Lookup("group"))
	_ = viper.BindPFlag("log_file", pf.Lookup("log-file"))

	rootCmd.AddCommand(runCmd, askCmd, historyCmd, statusCmd, catalogCmd, healthCmd)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && verbose {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "shopping-assistant"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api_url", config.DefaultAPIURL)
	viper.SetDefault("ws_url", "")
	viper.SetDefault("poll_interval", session.DefaultPollInterval)
	viper.SetDefault("poll_max_failures", session.DefaultMaxPollFailures)
	viper.SetDefault("timeout", "30s")
	viper.SetDefault("reconnect.mode", string(transport.ReconnectFixed))
	viper.SetDefault("reconnect.delay", transport.DefaultReconnectDelay)
	viper.SetDefault("reconnect.max_delay", "30s")
	viper.SetDefault("reconnect.max_attempts", 0)

	// The config file is optional.
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// clientConfig reads the effective client settings.
func clientConfig() (*config.ClientConfig, error) {
	cfg := &config.ClientConfig{
		APIURL:         viper.GetString("api_url"),
		WSURL:          viper.GetString("ws_url"),
		PollInterval:   viper.GetDuration("poll_interval"),
		PollFailures:   viper.GetInt("poll_max_failures"),
		RequestTimeout: viper.GetDuration("timeout"),
		ReconnectMode:  viper.GetString("reconnect.mode"),
		ReconnectDelay: viper.GetDuration("reconnect.delay"),
		ReconnectMax:   viper.GetDuration("reconnect.max_delay"),
		MaxAttempts:    viper.GetInt("reconnect.max_attempts"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the client logger. The TUI owns the terminal, so logs go
// to --log-file or nowhere unless verbose output is requested.
func newLogger(interactive bool) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if path := viper.GetString("log_file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	} else if interactive {
		w = io.Discard
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// clients bundles the transport and session for one command.
type clients struct {
	http    *transport.Client
	channel *transport.Channel
	store   *session.Store
	detach  func()
}

// newClients wires the HTTP client, push channel and session store. The
// returned close func tears them down in reverse order.
func newClients(cfg *config.ClientConfig, logger *slog.Logger) (*clients, error) {
	mode, err := transport.ParseReconnectMode(cfg.ReconnectMode)
	if err != nil {
		return nil, err
	}
	policy := transport.ReconnectPolicy{
		Mode:        mode,
		Delay:       cfg.ReconnectDelay,
		MaxDelay:    cfg.ReconnectMax,
		Jitter:      0.2,
		MaxAttempts: cfg.MaxAttempts,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	wsURL, err := cfg.StreamURL()
	if err != nil {
		return nil, err
	}

	httpClient := transport.NewClient(cfg.APIURL,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithLogger(logger),
	)
	store := session.New(httpClient,
		session.WithPollInterval(cfg.PollInterval),
		session.WithMaxPollFailures(cfg.PollFailures),
		session.WithRequestTimeout(cfg.RequestTimeout),
		session.WithLogger(logger),
	)
	channel := transport.NewChannel(wsURL,
		transport.WithReconnectPolicy(policy),
		transport.WithChannelLogger(logger),
		transport.WithStateHook(func(s transport.ConnState) {
			store.SetConnected(s == transport.StateConnected)
		}),
	)

	return &clients{
		http:    httpClient,
		channel: channel,
		store:   store,
		detach:  store.Attach(channel),
	}, nil
}

// connect opens the push channel. Failure is not fatal: the channel keeps
// retrying in the background and polling still drives the run.
func (c *clients) connect(ctx context.Context, cfg *config.ClientConfig) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := c.channel.Connect(dialCtx); err != nil {
		slog.Warn("Push channel unavailable, relying on polling", "url", c.channel.URL(), "error", err)
	}
}

func (c *clients) Close() {
	c.detach()
	if err := c.channel.Close(); err != nil {
		slog.Debug("Failed to close push channel", "error", err)
	}
	c.store.Close()
}

func tuiRun(ctx context.Context) error {
	cfg, err := clientConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := newClients(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	go c.connect(ctx, cfg)

	return tui.Run(c.store, tui.WithGroupKey(viewmodel.ParseGroupKey(viper.GetString("group"))))
}
