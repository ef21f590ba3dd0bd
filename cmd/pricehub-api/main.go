package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/musicpricehub/backend/internal/auth"
	"github.com/musicpricehub/backend/internal/catalog"
	"github.com/musicpricehub/backend/internal/chat"
	"github.com/musicpricehub/backend/internal/config"
	"github.com/musicpricehub/backend/internal/database"
	"github.com/musicpricehub/backend/internal/logging"
	"github.com/musicpricehub/backend/internal/scrape"
	"github.com/musicpricehub/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pricehub-api",
		Short: "MusicPriceHub backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
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
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("auth-issuer", defaults.GetString("auth.issuer"), "Expected issuer on session tokens")
	cmd.PersistentFlags().Int("settle-delay-ms", defaults.GetInt("scrape.settle_delay_ms"), "Wait after page load before serializing the DOM")
	cmd.PersistentFlags().Int("navigation-timeout-s", defaults.GetInt("scrape.navigation_timeout_s"), "Timeout for one page navigation")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.issuer", "auth-issuer")
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

func runServer(ctx context.Context) error {
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

	validator, err := auth.NewValidator(auth.ValidatorConfig{
		SigningSecret: []byte(appConfig.AuthSigningKey),
		Issuer:        appConfig.AuthIssuer,
	})
	if err != nil {
		return err
	}

	idProvider := catalog.NewUUIDProvider()

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	registry := chat.NewRegistry()
	chatService, err := chat.NewService(chat.ServiceConfig{
		Database:   db,
		Registry:   registry,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ledger, err := scrape.NewLedger(scrape.LedgerConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
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

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: validator,
		ChatService:      chatService,
		CatalogService:   catalogService,
		ScrapeRunner:     orchestrator,
		Ledger:           ledger,
		Database:         db,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
