package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sjfulfillment/internal/api"
	"sjfulfillment/internal/common/auth"
	"sjfulfillment/internal/common/aws"
	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/database"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/notifications"
	"sjfulfillment/internal/stockmonitor"
	"sjfulfillment/internal/webhooks"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting api-server",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.HTTP.Port),
	)

	ctx := context.Background()

	// --- Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Postgres connection")
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	// --- Redis (optional unread-count cache) ---
	var storeOpts []notifications.Option
	redisClient, err := database.NewRedis(cfg.Database.Redis)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx)
		cancel()
	}
	if err != nil {
		zapLog.Warn("redis unavailable, unread counts served from postgres", zap.Error(err))
	} else {
		defer redisClient.Close()
		cache := notifications.NewUnreadCache(
			redisClient.GetClient(),
			time.Duration(cfg.Notifications.UnreadCacheTTL)*time.Second,
		)
		storeOpts = append(storeOpts, notifications.WithUnreadCache(cache))
	}

	// --- Email/SMS channels ---
	if cfg.Notifications.EmailEnabled || cfg.Notifications.SMSEnabled {
		sesClient, sesErr := aws.NewSESClient(ctx, cfg.Notifications.AWSRegion)
		snsClient, snsErr := aws.NewSNSClient(ctx, cfg.Notifications.AWSRegion)
		if sesErr != nil || snsErr != nil {
			zapLog.Warn("AWS clients unavailable, channel fan-out disabled",
				zap.NamedError("ses", sesErr),
				zap.NamedError("sns", snsErr),
			)
		} else {
			sender := notifications.NewChannelSender(cfg.Notifications, sesClient, snsClient, log)
			storeOpts = append(storeOpts, notifications.WithChannelSender(sender))
		}
	}

	store := notifications.NewStore(pg.GetDB(), log, storeOpts...)
	webhookStore := webhooks.NewStore(pg.GetDB())

	// --- Elasticsearch delivery audit (optional) ---
	var (
		audit          *webhooks.AuditSink
		dispatcherOpts []webhooks.DispatcherOption
	)
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, delivery audit disabled", zap.Error(err))
		} else {
			audit = webhooks.NewAuditSink(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)
			dispatcherOpts = append(dispatcherOpts, webhooks.WithResultFunc(audit.Record))
		}
	}

	dispatcher := webhooks.NewDispatcher(webhookStore, cfg.Webhooks, log, dispatcherOpts...)
	monitor := stockmonitor.New(pg.GetDB(), store, dispatcher, cfg.StockMonitor, log)

	tokens := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTIssuer,
		time.Duration(cfg.Auth.TokenExpiry)*time.Minute,
	)

	server := api.NewServer(api.Deps{
		Config:       cfg,
		Store:        store,
		WebhookStore: webhookStore,
		Dispatcher:   dispatcher,
		Monitor:      monitor,
		Audit:        audit,
		Tokens:       tokens,
		Logger:       log,
	})

	// --- Metrics endpoint on its own port ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.HTTP.MetricsPort)
		zapLog.Info("metrics listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := server.Listen(); err != nil {
			zapLog.Fatal("http server stopped", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zapLog.Info("shutting down...")
	if err := server.Shutdown(); err != nil {
		zapLog.Error("server shutdown error", zap.Error(err))
	}
	dispatcher.Close()
	zapLog.Info("shutdown complete")
}
