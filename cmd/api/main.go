package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/voronkovm/diagramflow/internal/adapters/http"
	"github.com/voronkovm/diagramflow/internal/bootstrap"
	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	router, err := httpadapter.NewRouter(cfg, app.Logger, app.IngestUC, app.DiagramsUC, app.LibraryUC, app.AdminUC, app.Events, httpMetrics)
	if err != nil {
		log.Fatalf("router error: %v", err)
	}

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// No write deadline: event streams stay open until the client leaves.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		// Request contexts descend from the signal context, so open event
		// streams end at shutdown instead of stalling Shutdown below.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("api listen error: %v", err)
	}
	limited := netutil.LimitListener(listener, cfg.MaxConnections)

	go func() {
		log.Printf("api listening on :%s (max %d connections)", cfg.APIPort, cfg.MaxConnections)
		if err := server.Serve(limited); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
