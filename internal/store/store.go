package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "go.uber.org/zap"

    "shiprates/internal/rate"
)

// ErrNotFound is returned when a zone or rule id does not exist.
var ErrNotFound = errors.New("not found")

// Store persists the shipping configuration (zones, pricing rules, carrier
// method configs) in Postgres. Zones and rules are kept as explicit ordered
// lists; reordering rewrites every position in one transaction so a
// concurrent Snapshot never sees a half-reordered list.
type Store struct {
    db       *pgxpool.Pool
    validate *validator.Validate
    log      *zap.Logger
    currency string
}

func New(db *pgxpool.Pool, currency string, log *zap.Logger) *Store {
    if log == nil {
        log = zap.NewNop()
    }
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterStructValidation(validateZone, rate.Zone{})
    v.RegisterStructValidation(validateRule, rate.Rule{})
    return &Store{db: db, validate: v, log: log, currency: currency}
}

// validateZone enforces the closed matcher-type set and requires at least
// one matcher unless the zone is the everywhere catch-all.
func validateZone(sl validator.StructLevel) {
    z := sl.Current().Interface().(rate.Zone)
    if strings.TrimSpace(z.Name) == "" {
        sl.ReportError(z.Name, "Name", "name", "required", "")
    }
    if !z.Everywhere && len(z.Matchers) == 0 {
        sl.ReportError(z.Matchers, "Matchers", "matchers", "required_unless", "")
    }
    for _, m := range z.Matchers {
        switch m.Type {
        case rate.MatchContinent, rate.MatchCountry, rate.MatchState:
        default:
            sl.ReportError(m.Type, "Matchers", "matchers", "oneof", string(m.Type))
        }
        if strings.TrimSpace(m.Value) == "" {
            sl.ReportError(m.Value, "Matchers", "matchers", "required", "")
        }
    }
    for _, id := range z.Methods {
        if strings.TrimSpace(id) == "" {
            sl.ReportError(id, "Methods", "methods", "required", "")
        }
    }
}

// validateRule enforces the closed metric/operator/action-kind sets so the
// evaluation path never needs defensive type checks.
func validateRule(sl validator.StructLevel) {
    r := sl.Current().Interface().(rate.Rule)
    if strings.TrimSpace(r.Name) == "" {
        sl.ReportError(r.Name, "Name", "name", "required", "")
    }
    for _, c := range r.Conditions {
        switch c.Metric {
        case rate.MetricWeight, rate.MetricItemCount, rate.MetricSubtotal:
        default:
            sl.ReportError(c.Metric, "Conditions", "conditions", "oneof", string(c.Metric))
        }
        switch c.Operator {
        case rate.OpEq, rate.OpNeq, rate.OpGt, rate.OpGte, rate.OpLt, rate.OpLte:
        default:
            sl.ReportError(c.Operator, "Conditions", "conditions", "oneof", string(c.Operator))
        }
    }
    switch r.Action.Kind {
    case rate.ActionAdd, rate.ActionSubtract, rate.ActionMultiply, rate.ActionSet:
    default:
        sl.ReportError(r.Action.Kind, "Action", "action", "oneof", string(r.Action.Kind))
    }
}

// SaveZone creates or updates a zone. New zones are appended to the end of
// the evaluation order; updates keep their position.
func (s *Store) SaveZone(ctx context.Context, z rate.Zone) (uuid.UUID, error) {
    if err := s.validate.Struct(z); err != nil {
        return uuid.Nil, fmt.Errorf("invalid zone: %w", err)
    }
    if z.ID == uuid.Nil {
        z.ID = uuid.New()
    }
    matchers, err := json.Marshal(z.Matchers)
    if err != nil {
        return uuid.Nil, err
    }
    methods, err := json.Marshal(z.Methods)
    if err != nil {
        return uuid.Nil, err
    }
    _, err = s.db.Exec(ctx, `
        INSERT INTO zones (id, name, position, everywhere, matchers, methods)
        VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM zones), $3, $4::jsonb, $5::jsonb)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            everywhere = EXCLUDED.everywhere,
            matchers = EXCLUDED.matchers,
            methods = EXCLUDED.methods,
            updated_at = now()
    `, z.ID, z.Name, z.Everywhere, string(matchers), string(methods))
    if err != nil {
        return uuid.Nil, err
    }
    return z.ID, nil
}

// DeleteZone removes a zone. Remaining zones keep their relative order.
func (s *Store) DeleteZone(ctx context.Context, id uuid.UUID) error {
    tag, err := s.db.Exec(ctx, `DELETE FROM zones WHERE id = $1`, id)
    if err != nil {
        return err
    }
    if tag.RowsAffected() == 0 {
        return ErrNotFound
    }
    return nil
}

// ReorderZones replaces the zone evaluation order atomically. The id list
// must cover the stored zones exactly; anything else is rejected so a bad
// request can never drop or duplicate a zone.
func (s *Store) ReorderZones(ctx context.Context, ids []uuid.UUID) error {
    return s.reorder(ctx, "zones", ids)
}

// SaveRule creates or updates a pricing rule, appended last when new.
func (s *Store) SaveRule(ctx context.Context, r rate.Rule) (uuid.UUID, error) {
    if err := s.validate.Struct(r); err != nil {
        return uuid.Nil, fmt.Errorf("invalid rule: %w", err)
    }
    if r.ID == uuid.Nil {
        r.ID = uuid.New()
    }
    if r.Conditions == nil {
        r.Conditions = []rate.Condition{}
    }
    conditions, err := json.Marshal(r.Conditions)
    if err != nil {
        return uuid.Nil, err
    }
    action, err := json.Marshal(r.Action)
    if err != nil {
        return uuid.Nil, err
    }
    _, err = s.db.Exec(ctx, `
        INSERT INTO pricing_rules (id, name, position, conditions, action)
        VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM pricing_rules), $3::jsonb, $4::jsonb)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            conditions = EXCLUDED.conditions,
            action = EXCLUDED.action,
            updated_at = now()
    `, r.ID, r.Name, string(conditions), string(action))
    if err != nil {
        return uuid.Nil, err
    }
    return r.ID, nil
}

func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
    tag, err := s.db.Exec(ctx, `DELETE FROM pricing_rules WHERE id = $1`, id)
    if err != nil {
        return err
    }
    if tag.RowsAffected() == 0 {
        return ErrNotFound
    }
    return nil
}

// ReorderRules replaces the rule application order atomically. Rule order is
// the load-bearing property of the engine (multiply does not commute with
// add), so partial reorders are never written.
func (s *Store) ReorderRules(ctx context.Context, ids []uuid.UUID) error {
    return s.reorder(ctx, "pricing_rules", ids)
}

func (s *Store) reorder(ctx context.Context, table string, ids []uuid.UUID) error {
    tx, err := s.db.Begin(ctx)
    if err != nil {
        return err
    }
    defer func() { _ = tx.Rollback(ctx) }()

    rows, err := tx.Query(ctx, `SELECT id FROM `+table+` FOR UPDATE`)
    if err != nil {
        return err
    }
    existing := make(map[uuid.UUID]bool)
    for rows.Next() {
        var id uuid.UUID
        if err := rows.Scan(&id); err != nil {
            rows.Close()
            return err
        }
        existing[id] = true
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return err
    }

    if len(ids) != len(existing) {
        return fmt.Errorf("reorder must list all %d ids, got %d", len(existing), len(ids))
    }
    seen := make(map[uuid.UUID]bool, len(ids))
    for _, id := range ids {
        if !existing[id] {
            return fmt.Errorf("reorder: unknown id %s", id)
        }
        if seen[id] {
            return fmt.Errorf("reorder: duplicate id %s", id)
        }
        seen[id] = true
    }

    for pos, id := range ids {
        if _, err := tx.Exec(ctx, `UPDATE `+table+` SET position = $1, updated_at = now() WHERE id = $2`, pos, id); err != nil {
            return err
        }
    }
    return tx.Commit(ctx)
}

// SaveMethodConfig upserts the pricing config for a known carrier method.
func (s *Store) SaveMethodConfig(ctx context.Context, methodID string, cfg rate.MethodConfig) error {
    if rate.NewByName(methodID) == nil {
        return fmt.Errorf("unknown carrier method %q", methodID)
    }
    _, err := s.db.Exec(ctx, `
        INSERT INTO carrier_configs (method_id, enabled, base_cost, handling_fee, api_key, test_mode)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (method_id) DO UPDATE SET
            enabled = EXCLUDED.enabled,
            base_cost = EXCLUDED.base_cost,
            handling_fee = EXCLUDED.handling_fee,
            api_key = EXCLUDED.api_key,
            test_mode = EXCLUDED.test_mode,
            updated_at = now()
    `, strings.ToLower(strings.TrimSpace(methodID)), cfg.Enabled, cfg.BaseCost, cfg.HandlingFee, cfg.APIKey, cfg.TestMode)
    return err
}

// MethodConfig returns the stored config for one method.
func (s *Store) MethodConfig(ctx context.Context, methodID string) (rate.MethodConfig, error) {
    var cfg rate.MethodConfig
    err := s.db.QueryRow(ctx, `
        SELECT enabled, base_cost, handling_fee, api_key, test_mode
        FROM carrier_configs WHERE method_id = $1
    `, strings.ToLower(strings.TrimSpace(methodID))).Scan(
        &cfg.Enabled, &cfg.BaseCost, &cfg.HandlingFee, &cfg.APIKey, &cfg.TestMode)
    if err != nil {
        if errors.Is(err, pgx.ErrNoRows) {
            return rate.MethodConfig{}, ErrNotFound
        }
        return rate.MethodConfig{}, err
    }
    return cfg, nil
}

// Snapshot loads the full ordered configuration for one rate computation.
// Rows that no longer pass validation (edited out of band, stale enum
// values) are skipped and logged rather than failing the quote.
func (s *Store) Snapshot(ctx context.Context) (rate.Snapshot, error) {
    snap := rate.Snapshot{Currency: s.currency, Methods: make(map[string]rate.MethodConfig)}

    rows, err := s.db.Query(ctx, `SELECT id, name, everywhere, matchers, methods FROM zones ORDER BY position`)
    if err != nil {
        return rate.Snapshot{}, err
    }
    for rows.Next() {
        var (
            z           rate.Zone
            matchersRaw []byte
            methodsRaw  []byte
        )
        if err := rows.Scan(&z.ID, &z.Name, &z.Everywhere, &matchersRaw, &methodsRaw); err != nil {
            rows.Close()
            return rate.Snapshot{}, err
        }
        if err := json.Unmarshal(matchersRaw, &z.Matchers); err != nil {
            s.log.Warn("skipping zone with malformed matchers", zap.String("zone_id", z.ID.String()), zap.Error(err))
            continue
        }
        if err := json.Unmarshal(methodsRaw, &z.Methods); err != nil {
            s.log.Warn("skipping zone with malformed methods", zap.String("zone_id", z.ID.String()), zap.Error(err))
            continue
        }
        if err := s.validate.Struct(z); err != nil {
            s.log.Warn("skipping invalid zone", zap.String("zone_id", z.ID.String()), zap.Error(err))
            continue
        }
        snap.Zones = append(snap.Zones, z)
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return rate.Snapshot{}, err
    }

    rows, err = s.db.Query(ctx, `SELECT id, name, conditions, action FROM pricing_rules ORDER BY position`)
    if err != nil {
        return rate.Snapshot{}, err
    }
    for rows.Next() {
        var (
            r             rate.Rule
            conditionsRaw []byte
            actionRaw     []byte
        )
        if err := rows.Scan(&r.ID, &r.Name, &conditionsRaw, &actionRaw); err != nil {
            rows.Close()
            return rate.Snapshot{}, err
        }
        if err := json.Unmarshal(conditionsRaw, &r.Conditions); err != nil {
            s.log.Warn("skipping rule with malformed conditions", zap.String("rule_id", r.ID.String()), zap.Error(err))
            continue
        }
        if err := json.Unmarshal(actionRaw, &r.Action); err != nil {
            s.log.Warn("skipping rule with malformed action", zap.String("rule_id", r.ID.String()), zap.Error(err))
            continue
        }
        if err := s.validate.Struct(r); err != nil {
            s.log.Warn("skipping invalid rule", zap.String("rule_id", r.ID.String()), zap.Error(err))
            continue
        }
        snap.Rules = append(snap.Rules, r)
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return rate.Snapshot{}, err
    }

    rows, err = s.db.Query(ctx, `SELECT method_id, enabled, base_cost, handling_fee, api_key, test_mode FROM carrier_configs`)
    if err != nil {
        return rate.Snapshot{}, err
    }
    for rows.Next() {
        var (
            methodID string
            cfg      rate.MethodConfig
        )
        if err := rows.Scan(&methodID, &cfg.Enabled, &cfg.BaseCost, &cfg.HandlingFee, &cfg.APIKey, &cfg.TestMode); err != nil {
            rows.Close()
            return rate.Snapshot{}, err
        }
        snap.Methods[methodID] = cfg
    }
    rows.Close()
    if err := rows.Err(); err != nil {
        return rate.Snapshot{}, err
    }

    return snap, nil
}
