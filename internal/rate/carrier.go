package rate

import "strings"

// MethodConfig is the administrator-configured pricing for one carrier
// method. APIKey doubles as the credential check: a method without one is
// not offered.
type MethodConfig struct {
    Enabled     bool    `json:"enabled"`
    BaseCost    float64 `json:"base_cost"`
    HandlingFee float64 `json:"handling_fee"`
    APIKey      string  `json:"api_key"`
    TestMode    bool    `json:"test_mode"`
}

// Calculator computes a carrier method's base rate from package metrics.
// Quote returns ok=false when the package is ineligible for the method
// (disabled, missing credential, over a carrier limit); ineligible methods
// are omitted from quotes, they are not errors.
type Calculator interface {
    MethodID() string
    Quote(m Metrics, cfg MethodConfig) (amount float64, ok bool)
}

const (
    evriMaxWeightKg      = 15.0
    evriOverageThreshold = 2.0
    evriPerKgOverage     = 1.50
)

// Evri implements the Evri parcel formula: a flat base plus handling, with a
// per-kg overage above 2kg and a hard 15kg carrier maximum.
type Evri struct{}

func NewEvri() *Evri { return &Evri{} }

func (e *Evri) MethodID() string { return "evri" }

func (e *Evri) Quote(m Metrics, cfg MethodConfig) (float64, bool) {
    if !cfg.Enabled || strings.TrimSpace(cfg.APIKey) == "" {
        return 0, false
    }
    if m.WeightKg > evriMaxWeightKg {
        return 0, false
    }
    amount := cfg.BaseCost + cfg.HandlingFee
    if m.WeightKg > evriOverageThreshold {
        amount += (m.WeightKg - evriOverageThreshold) * evriPerKgOverage
    }
    return amount, true
}

// Flat is a weight-independent method: base cost plus handling, no carrier
// limit. Useful for in-house courier style methods.
type Flat struct{}

func NewFlat() *Flat { return &Flat{} }

func (f *Flat) MethodID() string { return "flat" }

func (f *Flat) Quote(m Metrics, cfg MethodConfig) (float64, bool) {
    if !cfg.Enabled || strings.TrimSpace(cfg.APIKey) == "" {
        return 0, false
    }
    return cfg.BaseCost + cfg.HandlingFee, true
}

// NewByName returns the Calculator for a method id, or nil for an unknown
// method. Unknown methods in a zone's list are skipped by the pipeline.
func NewByName(method string) Calculator {
    switch strings.ToLower(strings.TrimSpace(method)) {
    case "evri":
        return NewEvri()
    case "flat":
        return NewFlat()
    default:
        return nil
    }
}
