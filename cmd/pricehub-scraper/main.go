package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/musicpricehub/backend/internal/catalog"
	"github.com/musicpricehub/backend/internal/config"
	"github.com/musicpricehub/backend/internal/database"
	"github.com/musicpricehub/backend/internal/logging"
	"github.com/musicpricehub/backend/internal/scrape"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pricehub-scraper",
		Short: "MusicPriceHub periodic scrape worker",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("interval-minutes", defaults.GetInt("scrape.interval_minutes"), "Minutes between scrape passes")
	cmd.PersistentFlags().Int("settle-delay-ms", defaults.GetInt("scrape.settle_delay_ms"), "Wait after page load before serializing the DOM")
	cmd.PersistentFlags().Int("navigation-timeout-s", defaults.GetInt("scrape.navigation_timeout_s"), "Timeout for one page navigation")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")

	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "scrape.interval_minutes", "interval-minutes")
	bindFlag(cmd, "scrape.settle_delay_ms", "settle-delay-ms")
	bindFlag(cmd, "scrape.navigation_timeout_s", "navigation-timeout-s")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runWorker(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ledger, err := scrape.NewLedger(scrape.LedgerConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	orchestrator, err := scrape.NewOrchestrator(scrape.OrchestratorConfig{
		Database: db,
		Fetcher: scrape.NewBrowserFetcher(scrape.BrowserFetcherConfig{
			SettleDelay:       appConfig.SettleDelay,
			NavigationTimeout: appConfig.NavigationTimeout,
		}),
		Extractor: scrape.NewFenderExtractor(),
		Catalog:   catalogService,
		Ledger:    ledger,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("scrape worker starting",
		zap.Duration("interval", appConfig.ScrapeInterval))

	runPass(signalCtx, db, orchestrator, logger)

	ticker := time.NewTicker(appConfig.ScrapeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("scrape worker stopping")
			return nil
		case <-ticker.C:
			runPass(signalCtx, db, orchestrator, logger)
		}
	}
}

// runPass scrapes every store in turn. A store failure is logged and never
// stops the pass; cancellation stops it between stores.
func runPass(ctx context.Context, db *gorm.DB, orchestrator *scrape.Orchestrator, logger *zap.Logger) {
	var stores []catalog.Store
	if err := db.WithContext(ctx).Order("name ASC").Find(&stores).Error; err != nil {
		logger.Error("list stores", zap.Error(err))
		return
	}

	for _, store := range stores {
		if ctx.Err() != nil {
			return
		}
		summary, err := orchestrator.Run(ctx, store)
		if err != nil {
			logger.Error("scrape pass failed",
				zap.String("store_id", store.ID),
				zap.Error(err))
			continue
		}
		logger.Info("scrape pass finished",
			zap.String("store_id", summary.StoreID),
			zap.Int("attempted", summary.Attempted),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Duration("elapsed", summary.Elapsed))
	}
}
