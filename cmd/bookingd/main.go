package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kevcor13/client-interface1/internal/audit"
	"github.com/kevcor13/client-interface1/internal/booking"
	"github.com/kevcor13/client-interface1/internal/config"
	"github.com/kevcor13/client-interface1/internal/events"
	"github.com/kevcor13/client-interface1/internal/httpapi"
	"github.com/kevcor13/client-interface1/internal/metrics"
	"github.com/kevcor13/client-interface1/internal/notifier"
	"github.com/kevcor13/client-interface1/internal/slotstore"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BOOKING_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	store, httpStore, err := buildStore(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build slot store")
	}

	dispatcher := buildNotifier(cfg, logger)

	bus := events.NewBus()

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open audit db")
		}
		defer auditStore.Close()
		bus.Subscribe(events.TypeBookingConfirmed, auditStore.HandleEvent)
		bus.Subscribe(events.TypeBookingFailed, auditStore.HandleEvent)
	}

	coordCfg := booking.Config{
		PollInterval:  cfg.PollInterval(),
		CommitTimeout: cfg.StoreTimeout(),
	}
	factory := func() *booking.Coordinator {
		return booking.New(store, dispatcher, bus, coordCfg, logger)
	}

	sessions := httpapi.NewSessionStore(factory, cfg.SessionTimeout())
	go sessions.RunCleanup(ctx, time.Minute)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, httpStore, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	handler := httpapi.NewHandler(sessions, auditStore, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Routes(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Str("store_mode", cfg.Store.Mode).Msg("booking service started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// buildStore returns the configured Store. The second return is the
// HTTP backend when that mode is active, for readiness probes.
func buildStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (slotstore.Store, *slotstore.HTTPStore, error) {
	switch cfg.Store.Mode {
	case config.StoreModeSheets:
		s, err := slotstore.NewSheetsStore(ctx, slotstore.SheetsConfig{
			CredentialsFile: cfg.Store.Sheets.CredentialsFile,
			SpreadsheetID:   cfg.Store.Sheets.SpreadsheetID,
			SheetName:       cfg.Store.Sheets.SheetName,
			Prefiltered:     cfg.Store.Prefiltered,
		}, logger)
		return s, nil, err
	default:
		s := slotstore.NewHTTPStore(slotstore.HTTPConfig{
			BaseURL:            cfg.Store.BaseURL,
			APIKey:             cfg.Store.APIKey,
			Prefiltered:        cfg.Store.Prefiltered,
			ConditionalUpdates: cfg.Store.ConditionalUpdates,
			Timeout:            cfg.StoreTimeout(),
		}, logger)
		if rdb != nil && cfg.Store.CacheTTLSeconds > 0 {
			s.UseRedisCache(rdb, time.Duration(cfg.Store.CacheTTLSeconds)*time.Second)
		}
		return s, s, nil
	}
}

func buildNotifier(cfg *config.Config, logger zerolog.Logger) *notifier.Dispatcher {
	if !cfg.Notify.Enabled {
		console := notifier.NewConsoleSender(logger)
		return notifier.NewDispatcher(console, console, notifier.DefaultDispatcherConfig(), logger)
	}

	var owner, client notifier.Sender

	if cfg.Notify.SMTP.Host != "" {
		smtpSender := notifier.NewSMTPSender(notifier.SMTPConfig{
			Host:         cfg.Notify.SMTP.Host,
			Port:         cfg.Notify.SMTP.Port,
			Username:     cfg.Notify.SMTP.Username,
			Password:     cfg.Notify.SMTP.Password,
			From:         cfg.Notify.SMTP.From,
			OwnerAddress: cfg.Notify.SMTP.OwnerAddress,
		})
		owner, client = smtpSender, smtpSender
	}

	if cfg.Notify.Telegram.BotToken != "" {
		tg, err := notifier.NewTelegramSender(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		if err != nil {
			logger.Error().Err(err).Msg("telegram sender unavailable, owner alerts fall back to smtp")
		} else {
			owner = tg
		}
	}

	if owner == nil {
		owner = notifier.NewConsoleSender(logger)
	}
	if client == nil {
		client = notifier.NewConsoleSender(logger)
	}
	return notifier.NewDispatcher(owner, client, notifier.DefaultDispatcherConfig(), logger)
}

func startHealthServer(ctx context.Context, port int, store *slotstore.HTTPStore, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if store != nil {
			if err := store.Ping(ctxPing); err != nil {
				http.Error(w, "slot store not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
