// Command studyflowd serves the study session API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/petrijr/studyflow"
	"github.com/petrijr/studyflow/internal/config"
)

func main() {
	// Use a minimal logger until the configured one exists.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses flags, loads the configuration and serves until ctx is done.
func run(ctx context.Context, logW io.Writer, args []string) error {
	fs := flag.NewFlagSet("studyflowd", flag.ContinueOnError)
	fs.SetOutput(logW)
	configPath := fs.String("config", os.Getenv("STUDYFLOW_CONFIG"), "path to an HCL configuration file")
	checkOnly := fs.Bool("check", false, "validate the configuration and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if *checkOnly {
		fmt.Fprintln(logW, "configuration ok")
		return nil
	}

	logger := cfg.Logger(logW)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	svc, err := studyflow.NewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	}()

	return svc.Serve(ctx)
}
