package main

import (
    "context"
    "log"
    "net/http"
    "os"
    "strings"
    "time"

    "go.uber.org/zap"

    "shiprates/internal/carrier"
    "shiprates/internal/config"
    "shiprates/internal/db"
    "shiprates/internal/server"
    "shiprates/internal/store"
)

func main() {
    cfg := config.Load()

    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        log.Fatalf("DATABASE_URL not set. Please export DATABASE_URL before running.")
    }

    logger, err := zap.NewProduction()
    if err != nil {
        log.Fatalf("failed to build logger: %v", err)
    }
    defer logger.Sync()

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    pool, err := db.NewPool(ctx, cfg.DatabaseURL)
    if err != nil {
        logger.Fatal("failed to connect db", zap.Error(err))
    }
    defer pool.Close()
    // Verify connectivity proactively
    if err := pool.Ping(ctx); err != nil {
        logger.Fatal("database ping failed", zap.Error(err))
    }

    st := store.New(pool, cfg.Currency, logger)
    if cfg.SeedFile != "" {
        if err := st.Seed(ctx, cfg.SeedFile); err != nil {
            logger.Fatal("seed failed", zap.String("file", cfg.SeedFile), zap.Error(err))
        }
    }

    gw := carrier.NewClient(cfg.CarrierAPIURL, cfg.CarrierAPIKey, cfg.CarrierTestMode, logger)
    r := server.New(st, gw, logger)

    srv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           r,
        ReadTimeout:       10 * time.Second,
        ReadHeaderTimeout: 10 * time.Second,
        WriteTimeout:      20 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    logger.Info("api listening", zap.String("port", cfg.Port), zap.String("currency", cfg.Currency))
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        logger.Error("server error", zap.Error(err))
        os.Exit(1)
    }
}
