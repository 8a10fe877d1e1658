package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/gitpress/internal/sync"
	"github.com/renderinc/gitpress/internal/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  "Start the web server. The first update runs in the background; pages answer 503 until it succeeds.",
	Args:  cobra.NoArgs,
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) {
	a := newApp()
	defer a.Close()

	if serveHost != "" {
		a.cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		a.cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := web.NewServer(a.store, web.Options{
		Journal:     a.journal,
		UpdateToken: a.cfg.Settings.UpdateToken,
		IndexSize:   a.cfg.Settings.IndexSize,
		Location:    a.cfg.Location(),
		Logger:      slog.Default().With("component", "web"),
	})
	if err != nil {
		log.Fatalf("Error creating server: %v", err)
	}

	go func() {
		if _, err := a.store.TriggerUpdate(ctx); err != nil && ctx.Err() == nil {
			slog.Error("initial update failed", "error", err)
		}
	}()

	scheduler := sync.NewScheduler(func(ctx context.Context) error {
		_, err := a.store.TriggerUpdate(ctx)
		return err
	}, a.cfg.Settings.UpdateInterval, slog.Default().With("component", "scheduler"))
	go scheduler.Run(ctx)

	httpServer := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Starting server on http://%s\n", a.cfg.Addr())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	// In-flight handlers finish first; the deferred Close then drains any
	// detached update before the work dir goes away.
	<-shutdown
	slog.Info("server stopped")
}
