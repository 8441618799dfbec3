// ABOUTME: MCP stdio server entry point for the Bioclin gateway
// ABOUTME: Wires config, session store, API client, tool router, and browser login

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vindhyads/bioclin-gateway/internal/api"
	"github.com/vindhyads/bioclin-gateway/internal/browser"
	"github.com/vindhyads/bioclin-gateway/internal/config"
	"github.com/vindhyads/bioclin-gateway/internal/mcp"
	"github.com/vindhyads/bioclin-gateway/internal/session"
	"github.com/vindhyads/bioclin-gateway/internal/tools"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("bioclin-mcp", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "bioclin-mcp:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	// stdout belongs to the MCP transport; everything else goes to stderr.
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	sessionPath, err := cfg.SessionPath()
	if err != nil {
		return err
	}
	store := session.NewStore(sessionPath, logger)
	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Store:   store,
		Logger:  logger,
	})

	catalogue, err := tools.Load()
	if err != nil {
		return err
	}
	router := tools.NewRouter(catalogue, client, logger)

	// The browser is launched lazily, only when the login tool is invoked.
	loginFlow := func(ctx context.Context) (*browser.Capture, error) {
		chrome, err := browser.NewChrome(cfg.Browser.ExecPath)
		if err != nil {
			return nil, err
		}
		flow := &browser.Flow{
			Browser:      chrome,
			LoginURL:     cfg.Browser.LoginURL,
			PollInterval: cfg.Browser.PollInterval,
			PollLimit:    cfg.Browser.PollLimit,
			SettleDelay:  cfg.Browser.SettleDelay,
			Logger:       logger,
		}
		return flow.Run(ctx)
	}

	server, err := mcp.NewServer(mcp.Config{
		Router:     router,
		Client:     client,
		Store:      store,
		LoginFlow:  loginFlow,
		SessionTTL: cfg.Session.TTL,
		Version:    version,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bioclin-mcp starting",
		"version", version,
		"base_url", cfg.API.BaseURL,
		"tools", catalogue.Len(),
	)
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// newLogger builds the stderr logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
