// ABOUTME: CLI for managing the local Bioclin session
// ABOUTME: login captures credentials via browser or prompt; status and logout inspect and clear them

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/vindhyads/bioclin-gateway/internal/api"
	"github.com/vindhyads/bioclin-gateway/internal/browser"
	"github.com/vindhyads/bioclin-gateway/internal/config"
	"github.com/vindhyads/bioclin-gateway/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = cmdLogin(args)
	case "status":
		err = cmdStatus(args)
	case "logout":
		err = cmdLogout(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: bioclin-auth <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login                   Log in to Bioclin (browser window by default)")
	fmt.Println("  login --method cli      Log in with an email/password prompt instead")
	fmt.Println("  status                  Show the stored session and verify it with the server")
	fmt.Println("  logout                  Delete the stored session")
	fmt.Println()
	yellow.Println("Options:")
	fmt.Println("  --config <path>         Load settings from a YAML config file")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  BIOCLIN_API_URL         Override the API base URL")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  bioclin-auth login")
	fmt.Println("  bioclin-auth login --method cli")
	fmt.Println("  bioclin-auth status")
	fmt.Println()
}

// env is the wiring shared by every command.
type env struct {
	cfg    *config.Config
	store  *session.Store
	client *api.Client
	logger *slog.Logger
}

// parseCommonArgs pulls --config and --method out of the argument list.
func parseCommonArgs(args []string) (configPath, method string, err error) {
	method = "browser"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-c":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--config requires a path")
			}
			configPath = args[i+1]
			i++
		case "--method", "-m":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--method requires a value (browser or cli)")
			}
			method = args[i+1]
			i++
		default:
			return "", "", fmt.Errorf("unknown argument: %s", args[i])
		}
	}
	if method != "browser" && method != "cli" {
		return "", "", fmt.Errorf("unknown login method %q (use browser or cli)", method)
	}
	return configPath, method, nil
}

// newEnv loads configuration and wires the store and client.
func newEnv(configPath string) (*env, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	// The CLI speaks through its own output; keep the logger quiet unless
	// something is wrong.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	sessionPath, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	store := session.NewStore(sessionPath, logger)
	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Store:   store,
		Logger:  logger,
	})

	return &env{cfg: cfg, store: store, client: client, logger: logger}, nil
}

// cmdLogin captures a session and persists it after server-side verification.
func cmdLogin(args []string) error {
	configPath, method, err := parseCommonArgs(args)
	if err != nil {
		return err
	}
	e, err := newEnv(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rec *session.Record
	switch method {
	case "browser":
		rec, err = browserLogin(ctx, e)
	case "cli":
		rec, err = promptLogin(ctx, e)
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Logged in as %s\n", rec.User.Username)
	fmt.Printf("  Email:    %s\n", rec.User.Email)
	fmt.Printf("  Valid to: %s\n", rec.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  Saved:    %s\n", e.store.Path())
	return nil
}

// browserLogin opens a browser window and waits for the human to finish.
func browserLogin(ctx context.Context, e *env) (*session.Record, error) {
	fmt.Println("Opening a browser window; log in to Bioclin there.")
	fmt.Println("Waiting up to five minutes. Press Ctrl+C to cancel.")

	chrome, err := browser.NewChrome(e.cfg.Browser.ExecPath)
	if err != nil {
		return nil, err
	}
	flow := &browser.Flow{
		Browser:      chrome,
		LoginURL:     e.cfg.Browser.LoginURL,
		PollInterval: e.cfg.Browser.PollInterval,
		PollLimit:    e.cfg.Browser.PollLimit,
		SettleDelay:  e.cfg.Browser.SettleDelay,
		Logger:       e.logger,
	}

	capture, err := flow.Run(ctx)
	if err != nil {
		var te *browser.TimeoutError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("no login detected; the window was closed or the login never finished (last page: %s)", te.LastURL)
		}
		return nil, err
	}

	return api.EstablishSession(ctx, e.client, e.store, capture.Cookies, capture.CSRFToken, e.cfg.Session.TTL)
}

// promptLogin reads credentials from the terminal and logs in directly.
func promptLogin(ctx context.Context, e *env) (*session.Record, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading email: %w", err)
	}
	username = strings.TrimSpace(username)

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	if err := e.client.Login(ctx, username, string(passwordBytes)); err != nil {
		if api.IsAuthFailure(err) {
			return nil, fmt.Errorf("login rejected; check the email and password")
		}
		return nil, err
	}

	rec := e.client.Record()
	if rec == nil {
		return nil, fmt.Errorf("login succeeded but no session cookies were returned")
	}
	return api.EstablishSession(ctx, e.client, e.store, rec.Cookies, rec.CSRFToken, e.cfg.Session.TTL)
}

// cmdStatus reports the stored session and checks it against the server.
func cmdStatus(args []string) error {
	configPath, _, err := parseCommonArgs(args)
	if err != nil {
		return err
	}
	e, err := newEnv(configPath)
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	status, rec := e.store.Status()
	switch status {
	case session.StatusAbsent:
		yellow.Println("Not logged in.")
		fmt.Println("Run `bioclin-auth login` to start a session.")
		return nil
	case session.StatusExpired:
		yellow.Printf("Session expired at %s.\n", rec.ExpiresAt.Format(time.RFC3339))
		fmt.Println("Run `bioclin-auth login` to log in again.")
		return nil
	}

	fmt.Printf("Session file: %s\n", e.store.Path())
	fmt.Printf("User:         %s (%s)\n", rec.User.Username, rec.User.Email)
	fmt.Printf("Created:      %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Valid to:     %s\n", rec.ExpiresAt.Format(time.RFC3339))
	if exp, ok := session.TokenExpiry(rec.AccessToken()); ok {
		fmt.Printf("Token expiry: %s\n", exp.Format(time.RFC3339))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	e.client.SetRecord(rec)
	user, err := e.client.CurrentUser(ctx)
	if err != nil {
		if api.IsAuthFailure(err) {
			yellow.Println("Server check:  rejected (log in again)")
			return nil
		}
		yellow.Printf("Server check:  unreachable (%v)\n", err)
		return nil
	}

	green.Printf("Server check:  OK, logged in as %s\n", user.Username)
	return nil
}

// cmdLogout deletes the stored session.
func cmdLogout(args []string) error {
	configPath, _, err := parseCommonArgs(args)
	if err != nil {
		return err
	}
	e, err := newEnv(configPath)
	if err != nil {
		return err
	}

	if err := e.store.Clear(); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("✓ Logged out")
	return nil
}
