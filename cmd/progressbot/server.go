package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/halroad/progressbot/internal/bot"
	"github.com/halroad/progressbot/internal/config"
	"github.com/halroad/progressbot/internal/drive"
	"github.com/halroad/progressbot/internal/gauth"
	"github.com/halroad/progressbot/internal/health"
	"github.com/halroad/progressbot/internal/intake"
	"github.com/halroad/progressbot/internal/localstore"
	"github.com/halroad/progressbot/internal/notify"
	"github.com/halroad/progressbot/internal/session"
	"github.com/halroad/progressbot/internal/sheets"
	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/telegram"
	"github.com/halroad/progressbot/internal/watch"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.readonly",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the progressbot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running progressbot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progressbot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "progressbot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// buildProvider selects the tabular store backend.
func buildProvider(cfg *config.Config, tokens gauth.TokenSource) (tabular.Provider, func() error, error) {
	switch cfg.Provider {
	case config.ProviderSheets:
		return sheets.New(cfg.SheetID, tokens), func() error { return nil }, nil
	case config.ProviderSQLite:
		store, err := localstore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening local store: %w", err)
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "progressbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	// Refuse to double-start: probe the health port first.
	pidPath := pidFilePath(cfg.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.HealthPort)
	probe := &http.Client{Timeout: 2 * time.Second}
	if resp, err := probe.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("progressbot is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("progressbot is already running on port %d", cfg.HealthPort)
		return fmt.Errorf("server already running on port %d", cfg.HealthPort)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Google credentials are needed for the sheets provider and for
	// Drive file access.
	var tokens gauth.TokenSource
	if cfg.Provider == config.ProviderSheets || cfg.SharedDriveID != "" {
		sa, err := gauth.LoadServiceAccount(cfg.GoogleKeyFile, cfg.GoogleClientEmail, cfg.GooglePrivateKeyB64, googleScopes)
		if err != nil {
			return fmt.Errorf("loading Google credentials: %w", err)
		}
		tokens = sa
	}

	provider, closeProvider, err := buildProvider(cfg, tokens)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeProvider(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing provider: %v\n", err)
		}
	}()

	var files bot.FileStore
	if cfg.SharedDriveID != "" {
		files = drive.New(cfg.SharedDriveID, cfg.InvoicesFolderID, tokens)
	} else {
		logger.Info("no shared drive configured, file access disabled")
	}

	sessions := session.NewStore(provider, cfg.SessionTTL, logger)
	forms := intake.NewManager(cfg.IntakeTTL)
	registry := notify.NewRegistry()

	tg := telegram.New(cfg.TelegramToken)
	b := bot.New(tg, provider, files, sessions, forms, registry, logger)

	notifier := notify.NewNotifier(registry, b, logger)
	watcher := watch.New(provider, notifier, cfg.PollInterval, logger)

	go sessions.Run(ctx)
	go watcher.Run(ctx)

	srv := &http.Server{
		Addr: fmt.Sprintf("127.0.0.1:%d", cfg.HealthPort),
		Handler: health.NewHandler(health.Deps{
			Watcher:  watcher,
			Sessions: sessions,
			Version:  version,
		}),
	}
	healthErr := make(chan error, 1)
	go func() {
		logger.Info("health endpoint listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			healthErr <- err
		}
		close(healthErr)
	}()

	botDone := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(botDone)
	}()
	logger.Info("bot started", "provider", cfg.Provider, "poll_interval", cfg.PollInterval.String())

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-healthErr:
		if err != nil {
			stop()
			<-botDone
			return fmt.Errorf("health server error: %w", err)
		}
	}

	<-botDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("progressbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop progressbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to progressbot (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.HealthPort))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.HealthPort)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Provider)
	printStatus("Poll interval", "%s", cfg.PollInterval)
	if cfg.SharedDriveID != "" {
		printStatus("Drive", "configured")
	} else {
		printStatus("Drive", "not configured")
	}
	printStatus("Data dir", "%s", cfg.DataDir)
	return nil
}
