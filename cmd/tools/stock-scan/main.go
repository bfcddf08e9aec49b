// Command stock-scan runs a single stock-level pass from the command line,
// for operators and external schedulers that do not want to go through the
// admin HTTP endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/database"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/notifications"
	"sjfulfillment/internal/stockmonitor"
	"sjfulfillment/internal/webhooks"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall scan timeout")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres unreachable", zap.Error(err))
	}

	store := notifications.NewStore(pg.GetDB(), log)
	webhookStore := webhooks.NewStore(pg.GetDB())
	dispatcher := webhooks.NewDispatcher(webhookStore, cfg.Webhooks, log)
	monitor := stockmonitor.New(pg.GetDB(), store, dispatcher, cfg.StockMonitor, log)

	report, err := monitor.Scan(ctx)
	if err != nil {
		zapLog.Fatal("stock scan failed", zap.Error(err))
	}

	// Let queued webhook deliveries finish before exiting.
	dispatcher.Close()

	fmt.Printf("items low: %d\nmerchants affected: %d\nnotifications created: %d\nwebhooks enqueued: %d\n",
		report.ItemsLow, report.MerchantsAffected, report.NotificationsCreated, report.WebhooksEnqueued)
}
