package server

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/google/uuid"

    "shiprates/internal/carrier"
    "shiprates/internal/rate"
)

// fakeStore implements ConfigStore with overridable behavior per test.
type fakeStore struct {
    snap         rate.Snapshot
    snapErr      error
    saveZoneFn   func(rate.Zone) (uuid.UUID, error)
    deleteFn     func(uuid.UUID) error
    reorderFn    func([]uuid.UUID) error
    saveRuleFn   func(rate.Rule) (uuid.UUID, error)
    saveMethodFn func(string, rate.MethodConfig) error
}

func (f *fakeStore) Snapshot(context.Context) (rate.Snapshot, error) { return f.snap, f.snapErr }

func (f *fakeStore) SaveZone(_ context.Context, z rate.Zone) (uuid.UUID, error) {
    if f.saveZoneFn != nil {
        return f.saveZoneFn(z)
    }
    return uuid.New(), nil
}

func (f *fakeStore) DeleteZone(_ context.Context, id uuid.UUID) error {
    if f.deleteFn != nil {
        return f.deleteFn(id)
    }
    return nil
}

func (f *fakeStore) ReorderZones(_ context.Context, ids []uuid.UUID) error {
    if f.reorderFn != nil {
        return f.reorderFn(ids)
    }
    return nil
}

func (f *fakeStore) SaveRule(_ context.Context, r rate.Rule) (uuid.UUID, error) {
    if f.saveRuleFn != nil {
        return f.saveRuleFn(r)
    }
    return uuid.New(), nil
}

func (f *fakeStore) DeleteRule(_ context.Context, id uuid.UUID) error {
    if f.deleteFn != nil {
        return f.deleteFn(id)
    }
    return nil
}

func (f *fakeStore) ReorderRules(_ context.Context, ids []uuid.UUID) error {
    if f.reorderFn != nil {
        return f.reorderFn(ids)
    }
    return nil
}

func (f *fakeStore) SaveMethodConfig(_ context.Context, methodID string, cfg rate.MethodConfig) error {
    if f.saveMethodFn != nil {
        return f.saveMethodFn(methodID, cfg)
    }
    return nil
}

// fakeGateway implements Gateway.
type fakeGateway struct {
    label    carrier.Label
    labelErr error
    events   []carrier.TrackingEvent
    trackErr error
    amount   float64
    rateErr  error
}

func (f *fakeGateway) CreateLabel(context.Context, carrier.LabelRequest) (carrier.Label, error) {
    return f.label, f.labelErr
}

func (f *fakeGateway) TrackShipment(context.Context, string) ([]carrier.TrackingEvent, error) {
    return f.events, f.trackErr
}

func (f *fakeGateway) LiveRate(context.Context, carrier.LiveRateRequest) (float64, error) {
    return f.amount, f.rateErr
}

func testSnapshot() rate.Snapshot {
    return rate.Snapshot{
        Zones: []rate.Zone{{
            ID:       uuid.New(),
            Name:     "UK",
            Matchers: []rate.Matcher{{Type: rate.MatchCountry, Value: "GB"}},
            Methods:  []string{"evri"},
        }},
        Rules: []rate.Rule{{
            ID:         uuid.New(),
            Name:       "big cart discount",
            Conditions: []rate.Condition{{Metric: rate.MetricSubtotal, Operator: rate.OpGte, Threshold: 30}},
            Action:     rate.Action{Kind: rate.ActionSubtract, Amount: 5},
        }},
        Methods: map[string]rate.MethodConfig{
            "evri": {Enabled: true, BaseCost: 5.00, APIKey: "k"},
        },
        Currency: "GBP",
    }
}

func TestHealthz(t *testing.T) {
    h := New(&fakeStore{}, &fakeGateway{}, nil)
    req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d", rr.Code)
    }
    if body := rr.Body.String(); body != "ok" {
        t.Fatalf("expected body 'ok', got %q", body)
    }
}

func TestRequestIDHeaderPresent(t *testing.T) {
    h := New(&fakeStore{}, &fakeGateway{}, nil)
    req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rid := rr.Header().Get("X-Request-ID"); rid == "" {
        t.Fatalf("expected X-Request-ID header to be set")
    }
}

func TestQuote(t *testing.T) {
    h := New(&fakeStore{snap: testSnapshot()}, &fakeGateway{}, nil)
    payload := map[string]any{
        "items": []map[string]any{
            {"product_id": "a", "quantity": 1, "weight_kg": 2, "unit_price": 25, "shippable": true},
            {"product_id": "b", "quantity": 1, "weight_kg": 1, "unit_price": 15, "shippable": true},
        },
        "destination": map[string]any{"country": "GB"},
    }
    body, _ := json.Marshal(payload)
    req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
    }
    var res QuoteResponse
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
        t.Fatalf("failed to unmarshal: %v", err)
    }
    if len(res.Results) != 1 {
        t.Fatalf("expected 1 result, got %d", len(res.Results))
    }
    r := res.Results[0]
    // base 5.00 + (3-2)*1.50 = 6.50; discount rule (40 >= 30) -> 1.50
    if r.MethodID != "evri" || r.Currency != "GBP" {
        t.Fatalf("unexpected result: %+v", r)
    }
    if r.BaseRate < 6.49 || r.BaseRate > 6.51 {
        t.Fatalf("unexpected base rate: %v", r.BaseRate)
    }
    if r.FinalRate < 1.49 || r.FinalRate > 1.51 {
        t.Fatalf("unexpected final rate: %v", r.FinalRate)
    }
}

func TestQuote_NoZoneReturnsEmptyList(t *testing.T) {
    h := New(&fakeStore{snap: testSnapshot()}, &fakeGateway{}, nil)
    body, _ := json.Marshal(map[string]any{"destination": map[string]any{"country": "JP"}})
    req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
    }
    var res QuoteResponse
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
        t.Fatalf("failed to unmarshal: %v", err)
    }
    if res.Results == nil || len(res.Results) != 0 {
        t.Fatalf("expected empty result list, got %+v", res.Results)
    }
}

func TestSaveZone(t *testing.T) {
    id := uuid.New()
    fs := &fakeStore{saveZoneFn: func(z rate.Zone) (uuid.UUID, error) {
        if z.Name != "Europe" {
            t.Errorf("unexpected zone name: %s", z.Name)
        }
        return id, nil
    }}
    h := New(fs, &fakeGateway{}, nil)
    body, _ := json.Marshal(map[string]any{
        "name":     "Europe",
        "matchers": []map[string]string{{"type": "continent", "value": "EU"}},
        "methods":  []string{"evri"},
    })
    req := httptest.NewRequest(http.MethodPut, "/admin/zones", bytes.NewReader(body))
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
    }
    var res struct {
        ZoneID string `json:"zone_id"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
        t.Fatalf("failed to unmarshal: %v", err)
    }
    if res.ZoneID != id.String() {
        t.Fatalf("unexpected zone id: %s", res.ZoneID)
    }
}

func TestReorderRules_PreservesSubmittedOrder(t *testing.T) {
    a, b := uuid.New(), uuid.New()
    var got []uuid.UUID
    fs := &fakeStore{reorderFn: func(ids []uuid.UUID) error {
        got = ids
        return nil
    }}
    h := New(fs, &fakeGateway{}, nil)
    body, _ := json.Marshal(map[string]any{"ids": []string{b.String(), a.String()}})
    req := httptest.NewRequest(http.MethodPut, "/admin/rules/order", bytes.NewReader(body))
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
    }
    if len(got) != 2 || got[0] != b || got[1] != a {
        t.Fatalf("reorder did not preserve submitted order: %v", got)
    }
}

func TestGenerateLabel(t *testing.T) {
    gw := &fakeGateway{label: carrier.Label{TrackingNumber: "TRK9", LabelURL: "https://labels.example/TRK9.pdf"}}
    h := New(&fakeStore{}, gw, nil)
    body, _ := json.Marshal(map[string]any{"to_country": "GB", "weight_kg": 1.5, "service_code": "evri"})
    req := httptest.NewRequest(http.MethodPost, "/admin/orders/ord-7/label", bytes.NewReader(body))
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
    }
    var res struct {
        TrackingNumber string `json:"tracking_number"`
        LabelURL       string `json:"label_url"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
        t.Fatalf("failed to unmarshal: %v", err)
    }
    if res.TrackingNumber != "TRK9" || res.LabelURL == "" {
        t.Fatalf("unexpected response: %+v", res)
    }
}

func TestTrackShipment(t *testing.T) {
    gw := &fakeGateway{events: []carrier.TrackingEvent{{Status: "delivered", Location: "front porch"}}}
    h := New(&fakeStore{}, gw, nil)
    req := httptest.NewRequest(http.MethodGet, "/admin/tracking/TRK9", nil)
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
    }
    var res struct {
        Events []carrier.TrackingEvent `json:"events"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
        t.Fatalf("failed to unmarshal: %v", err)
    }
    if len(res.Events) != 1 || res.Events[0].Status != "delivered" {
        t.Fatalf("unexpected events: %+v", res.Events)
    }
}
