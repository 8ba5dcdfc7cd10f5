package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/handlers"
	"sensor-dashboard/internal/influx"
	"sensor-dashboard/internal/logger"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.New("info").Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel)
	log.Info().
		Str("port", cfg.ServerPort).
		Int("sensors", len(cfg.Sensors)).
		Dur("window", cfg.Detector.Window).
		Float64("sigma", cfg.Detector.Sigma).
		Msg("starting sensor dashboard service")

	// Инициализация Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisCache.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	// Инициализация InfluxDB
	influxClient := influx.NewClient(cfg.Influx)
	defer influxClient.Close()

	// Сервис дашборда
	svc := dashboard.NewService(influxClient, redisCache, cfg, log)

	// HTTP handlers
	handler := handlers.NewHandler(svc, redisCache.Ping, influxClient.Ping)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Периодический пересчет аномалий по всем сенсорам
	go refreshLoop(ctx, svc, cfg.RefreshInterval, log)

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped gracefully")
}

// refreshLoop периодически пересчитывает аномалии; первый цикл сразу
func refreshLoop(ctx context.Context, svc *dashboard.Service, interval time.Duration, log *logger.Logger) {
	if err := svc.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("initial refresh failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Refresh(ctx); err != nil {
				log.Error().Err(err).Msg("refresh failed")
			}
		}
	}
}
