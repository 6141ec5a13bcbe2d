package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wecomrelay/pkg/config"
	"wecomrelay/pkg/logger"
	"wecomrelay/pkg/relay"
	"wecomrelay/pkg/server"
	"wecomrelay/pkg/wecom"
)

const shutdownTimeout = 15 * time.Second

var errInvalidConfig = errors.New("invalid configuration")

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay HTTP server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *globalOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("✗ %v\n", e)
		}
		return errInvalidConfig
	}
	opts.configureLogging(cfg)
	defer logger.DisableFileLogging()

	client := wecom.NewClient(cfg.WeCom.WebhookURL, cfg.ForwardTimeout())
	srv := server.NewServer(cfg, relay.New(client, cfg.WeCom.MentionedList))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	fmt.Printf("✓ Relay started on %s\n", cfg.ListenAddr())
	fmt.Printf("✓ Forwarding to %s\n", redactWebhookURL(cfg.WeCom.WebhookURL))
	fmt.Println("Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println("✓ Relay stopped")
	return nil
}
