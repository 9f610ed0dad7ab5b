// Command api runs the read-model server: it serves the aggregated feed,
// activity and profile views over HTTP while a realtime listener keeps the
// cache invalidated as the underlying data changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aperture-backend/internal/aggregator"
	"aperture-backend/internal/cache"
	"aperture-backend/internal/config"
	"aperture-backend/internal/handlers"
	"aperture-backend/internal/realtime"
	"aperture-backend/internal/service/social"
	"aperture-backend/internal/session"
	"aperture-backend/internal/store"
	"aperture-backend/pkg/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	metrics := observability.NewCollector("aperture")

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil)
	if err != nil {
		return fmt.Errorf("init data service client: %w", err)
	}

	dataService := store.NewBreakerStore(
		store.NewSupabase(client, logger, metrics),
		store.DefaultBreakerConfig("data-service"),
		logger,
	)

	c := cache.New(logger, metrics)
	agg := aggregator.New(dataService, c, cfg.Tunables, logger)
	sess := session.NewManager(client, dataService, logger)
	svc := social.NewService(dataService, c, sess, logger, metrics, cfg.StorageBucket)

	var watcher *config.Watcher
	if cfg.IsDevelopment() && cfg.TunablesFile != "" {
		watcher, err = config.NewWatcher(cfg, logger)
		if err != nil {
			logger.Warn("Tunables watcher disabled", zap.Error(err))
		} else {
			watcher.OnReload(agg.SetTunables)
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := realtime.NewSocketFeed(realtime.SocketConfig{
		URL:               realtimeURL(cfg),
		Relations:         realtime.WatchedRelations(),
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectMinWait:  cfg.ReconnectMinWait,
		ReconnectMaxWait:  cfg.ReconnectMaxWait,
	}, sess.ViewerID, logger)
	// The activities channel is scoped to the viewer at join time, so a
	// sign-in or sign-out needs a fresh subscription.
	sess.OnChange(feed.Rejoin)
	listener := realtime.NewListener(feed, c, sess.ViewerID, logger, metrics)

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: handlers.NewRouter(cfg, logger, metrics, agg, svc, sess),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })
	g.Go(func() error {
		logger.Info("Server listening", zap.String("address", cfg.ServerAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// realtimeURL derives the websocket endpoint from the data service URL when
// no explicit override is configured
func realtimeURL(cfg *config.Config) string {
	if cfg.RealtimeURL != "" {
		return cfg.RealtimeURL
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.SupabaseURL, "https://"), "http://")
	return fmt.Sprintf("wss://%s/realtime/v1/websocket?apikey=%s&vsn=1.0.0",
		strings.TrimSuffix(host, "/"), url.QueryEscape(cfg.SupabaseAnonKey))
}
