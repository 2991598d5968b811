package store

import (
    "context"
    "fmt"
    "os"

    "go.uber.org/zap"
    "gopkg.in/yaml.v3"

    "shiprates/internal/rate"
)

// seedFile is the YAML fixture layout accepted by Seed.
type seedFile struct {
    Zones []struct {
        Name       string `yaml:"name"`
        Everywhere bool   `yaml:"everywhere"`
        Matchers   []struct {
            Type  string `yaml:"type"`
            Value string `yaml:"value"`
        } `yaml:"matchers"`
        Methods []string `yaml:"methods"`
    } `yaml:"zones"`
    Rules []struct {
        Name       string `yaml:"name"`
        Conditions []struct {
            Metric    string  `yaml:"metric"`
            Operator  string  `yaml:"operator"`
            Threshold float64 `yaml:"threshold"`
        } `yaml:"conditions"`
        Action struct {
            Kind   string  `yaml:"kind"`
            Amount float64 `yaml:"amount"`
        } `yaml:"action"`
    } `yaml:"rules"`
    Methods map[string]struct {
        Enabled     bool    `yaml:"enabled"`
        BaseCost    float64 `yaml:"base_cost"`
        HandlingFee float64 `yaml:"handling_fee"`
        APIKey      string  `yaml:"api_key"`
        TestMode    bool    `yaml:"test_mode"`
    } `yaml:"methods"`
}

// Seed imports a YAML configuration fixture. It is a no-op when zones
// already exist, so it is safe to run on every startup.
func (s *Store) Seed(ctx context.Context, path string) error {
    var count int
    if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM zones`).Scan(&count); err != nil {
        return err
    }
    if count > 0 {
        return nil
    }

    raw, err := os.ReadFile(path)
    if err != nil {
        return err
    }
    var f seedFile
    if err := yaml.Unmarshal(raw, &f); err != nil {
        return fmt.Errorf("parse seed file: %w", err)
    }

    for method, mc := range f.Methods {
        cfg := rate.MethodConfig{
            Enabled:     mc.Enabled,
            BaseCost:    mc.BaseCost,
            HandlingFee: mc.HandlingFee,
            APIKey:      mc.APIKey,
            TestMode:    mc.TestMode,
        }
        if err := s.SaveMethodConfig(ctx, method, cfg); err != nil {
            return fmt.Errorf("seed method %s: %w", method, err)
        }
    }
    for _, sz := range f.Zones {
        z := rate.Zone{Name: sz.Name, Everywhere: sz.Everywhere, Methods: sz.Methods}
        for _, m := range sz.Matchers {
            z.Matchers = append(z.Matchers, rate.Matcher{Type: rate.MatcherType(m.Type), Value: m.Value})
        }
        if _, err := s.SaveZone(ctx, z); err != nil {
            return fmt.Errorf("seed zone %s: %w", sz.Name, err)
        }
    }
    for _, sr := range f.Rules {
        r := rate.Rule{
            Name:   sr.Name,
            Action: rate.Action{Kind: rate.ActionKind(sr.Action.Kind), Amount: sr.Action.Amount},
        }
        for _, c := range sr.Conditions {
            r.Conditions = append(r.Conditions, rate.Condition{
                Metric:    rate.Metric(c.Metric),
                Operator:  rate.Operator(c.Operator),
                Threshold: c.Threshold,
            })
        }
        if _, err := s.SaveRule(ctx, r); err != nil {
            return fmt.Errorf("seed rule %s: %w", sr.Name, err)
        }
    }

    s.log.Info("seeded shipping configuration",
        zap.Int("zones", len(f.Zones)),
        zap.Int("rules", len(f.Rules)),
        zap.Int("methods", len(f.Methods)))
    return nil
}
