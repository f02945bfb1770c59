// Command statusfixer keeps Jira issue pages patched in a managed Chrome:
// the status widget is moved next to approvals and a compact resolution
// badge is kept beside it.
//
// Usage:
//
//	statusfixer -config statusfixer.yaml          # patch pages from YAML config
//	statusfixer -url https://acme.atlassian.net/browse/ABC-1
//	statusfixer -capture page.html -out fixed.html # patch a saved page offline
//	statusfixer -popup                             # status popup for the active tab
//	statusfixer -mcp -config statusfixer.yaml      # MCP server on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/statusfixer/browser"
	"github.com/hazyhaar/statusfixer/fixer"
	"github.com/hazyhaar/statusfixer/idgen"
	"github.com/hazyhaar/statusfixer/patcher"
	"github.com/hazyhaar/statusfixer/popup"
)

var version = "dev"

type options struct {
	configPath string
	singleURL  string
	capture    string
	out        string
	popup      bool
	mcp        bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to statusfixer.yaml config file")
	flag.StringVar(&o.singleURL, "url", "", "patch a single issue page")
	flag.StringVar(&o.capture, "capture", "", "patch a saved page offline and exit")
	flag.StringVar(&o.out, "out", "", "with -capture: write the patched page here instead of stdout")
	flag.BoolVar(&o.popup, "popup", false, "show the status popup for the active tab")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("statusfixer: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}

	switch {
	case o.capture != "":
		return runCapture(logger, cfg, o.capture, o.out)
	case o.popup:
		return runPopup(ctx, logger, cfg)
	case o.mcp:
		return runMCP(ctx, logger, cfg, o.singleURL)
	case o.singleURL != "":
		cfg.Pages = []fixer.PageConfig{{ID: idgen.New(), URL: o.singleURL}}
		return runDaemon(ctx, logger, cfg)
	case o.configPath != "":
		return runDaemon(ctx, logger, cfg)
	}

	fmt.Fprintln(os.Stderr, "usage: statusfixer -config <file> | -url <url> | -capture <file> [-out <file>] | -popup | -mcp")
	os.Exit(2)
	return nil
}

func loadConfig(path string) (*fixer.Config, error) {
	if path == "" {
		return fixer.DefaultConfig(), nil
	}
	cfg, err := fixer.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runCapture(logger *slog.Logger, cfg *fixer.Config, in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	p := patcher.New(fixer.PatcherOptions(cfg, logger))
	res, patched, err := fixer.CheckCapture(p, string(data))
	if err != nil {
		return err
	}

	if out == "" {
		_, err = os.Stdout.WriteString(patched)
		logger.Info("statusfixer: capture patched",
			"skipped", res.Skipped, "moved", res.Moved, "badge", res.Badge, "text", res.Text)
		return err
	}
	if err := os.WriteFile(out, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runPopup(ctx context.Context, logger *slog.Logger, cfg *fixer.Config) error {
	// The popup only reads the active tab: attach to a running Chrome
	// when one is configured, never recycle.
	bc := fixer.BrowserOptions(cfg, logger)
	bc.RecycleInterval = 24 * time.Hour
	mgr := browser.NewManager(bc)
	b, err := mgr.Start(ctx)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	ctrl := popup.NewController(popup.NewRodBrowser(b), fixer.PopupOptions(cfg, logger))
	return popup.Run(ctx, ctrl)
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *fixer.Config, singleURL string) error {
	if singleURL != "" {
		cfg.Pages = append(cfg.Pages, fixer.PageConfig{ID: idgen.New(), URL: singleURL})
	}
	f := fixer.New(cfg, fixer.WithLogger(logger))
	if len(cfg.Pages) > 0 {
		if err := f.Start(ctx); err != nil {
			return err
		}
	}
	defer f.Stop()

	srv := mcp.NewServer(&mcp.Implementation{Name: "statusfixer", Version: version}, nil)
	f.RegisterMCP(srv)

	logger.Info("statusfixer: mcp on stdio", "pages", len(cfg.Pages))
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *fixer.Config) error {
	f := fixer.New(cfg, fixer.WithLogger(logger))
	if err := f.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer f.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           f.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("statusfixer: http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	}
	logger.Info("statusfixer: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("statusfixer: http shutdown", "error", err)
	}
	return nil
}
