// Command otprelay runs the OTP relay: it watches a web SMS/voice inbox
// tab for verification codes and offers them for autofill in every other
// tab of the same browser.
//
// Usage:
//
//	otprelay -config otprelay.yaml
//	otprelay -inbox-url https://voice.google.com/u/0/messages
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/veilbit/otprelay/relay"
)

func main() {
	configPath := flag.String("config", "", "path to otprelay.yaml config file")
	inboxURL := flag.String("inbox-url", "", "inbox page URL (overrides config)")
	listen := flag.String("listen", "", "status API listen address (overrides config)")
	withMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
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

	if err := run(ctx, logger, *configPath, *inboxURL, *listen, *withMCP); err != nil {
		logger.Error("otprelay: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, inboxURL, listen string, withMCP bool) error {
	cfg := relay.DefaultConfig()
	if configPath != "" {
		loaded, err := relay.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if inboxURL != "" {
		cfg.Inbox.URL = inboxURL
	}
	if listen != "" {
		cfg.HTTP.Listen = listen
	}
	if cfg.Inbox.URL == "" {
		fmt.Fprintln(os.Stderr, "usage: otprelay -config <file> | -inbox-url <url>")
		os.Exit(1)
	}

	r := relay.New(cfg, logger)
	if err := r.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("otprelay: status API listening", "addr", cfg.HTTP.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("otprelay: http server", "error", err)
		}
	}()

	if withMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "otprelay",
			Version: "1.0.0",
		}, nil)
		r.Coordinator().RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("otprelay: mcp server", "error", err)
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otprelay: http shutdown", "error", err)
	}
	return nil
}
