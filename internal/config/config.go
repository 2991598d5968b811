package config

import (
    "os"
)

type Config struct {
    DatabaseURL     string
    Port            string
    Currency        string
    CarrierAPIURL   string
    CarrierAPIKey   string
    CarrierTestMode bool
    SeedFile        string
}

func Load() Config {
    port := os.Getenv("PORT")
    if port == "" {
        port = "8080"
    }
    currency := os.Getenv("CURRENCY")
    if currency == "" {
        currency = "GBP"
    }
    return Config{
        DatabaseURL:     os.Getenv("DATABASE_URL"),
        Port:            port,
        Currency:        currency,
        CarrierAPIURL:   os.Getenv("CARRIER_API_URL"),
        CarrierAPIKey:   os.Getenv("CARRIER_API_KEY"),
        CarrierTestMode: os.Getenv("CARRIER_TEST_MODE") == "true",
        SeedFile:        os.Getenv("SEED_FILE"),
    }
}
