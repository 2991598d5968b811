package server

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strings"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/google/uuid"
    "go.uber.org/zap"

    "shiprates/internal/carrier"
    "shiprates/internal/rate"
    "shiprates/internal/store"
)

// ConfigStore is the persisted shipping configuration the handlers read and
// mutate. Satisfied by *store.Store.
type ConfigStore interface {
    Snapshot(ctx context.Context) (rate.Snapshot, error)
    SaveZone(ctx context.Context, z rate.Zone) (uuid.UUID, error)
    DeleteZone(ctx context.Context, id uuid.UUID) error
    ReorderZones(ctx context.Context, ids []uuid.UUID) error
    SaveRule(ctx context.Context, r rate.Rule) (uuid.UUID, error)
    DeleteRule(ctx context.Context, id uuid.UUID) error
    ReorderRules(ctx context.Context, ids []uuid.UUID) error
    SaveMethodConfig(ctx context.Context, methodID string, cfg rate.MethodConfig) error
}

// Gateway is the carrier API boundary used by the admin label/tracking
// handlers. Satisfied by *carrier.Client.
type Gateway interface {
    CreateLabel(ctx context.Context, req carrier.LabelRequest) (carrier.Label, error)
    TrackShipment(ctx context.Context, trackingNumber string) ([]carrier.TrackingEvent, error)
    LiveRate(ctx context.Context, req carrier.LiveRateRequest) (float64, error)
}

type Server struct {
    store   ConfigStore
    gateway Gateway
    log     *zap.Logger
}

// New builds the HTTP surface: the storefront quote endpoint plus the
// administrator configuration and fulfillment endpoints.
func New(cs ConfigStore, gw Gateway, log *zap.Logger) http.Handler {
    if log == nil {
        log = zap.NewNop()
    }
    s := &Server{store: cs, gateway: gw, log: log}
    r := chi.NewRouter()
    // Observability: Request ID and basic logger
    r.Use(requestIDMiddleware)
    r.Use(middleware.Logger)
    r.Get("/healthz", s.handleHealth)
    r.Post("/quote", s.handleQuote)
    r.Route("/admin", func(r chi.Router) {
        r.Put("/zones", s.handleSaveZone)
        r.Put("/zones/order", s.handleReorderZones)
        r.Delete("/zones/{id}", s.handleDeleteZone)
        r.Put("/rules", s.handleSaveRule)
        r.Put("/rules/order", s.handleReorderRules)
        r.Delete("/rules/{id}", s.handleDeleteRule)
        r.Put("/methods/{id}", s.handleSaveMethodConfig)
        r.Get("/methods/{id}/live-rate", s.handleLiveRate)
        r.Post("/orders/{id}/label", s.handleGenerateLabel)
        r.Get("/tracking/{code}", s.handleTrackShipment)
    })
    return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
    w.WriteHeader(http.StatusOK)
    w.Write([]byte("ok"))
}

// Storefront quote

type QuoteResponse struct {
    Results []rate.Result `json:"results"`
}

// handleQuote computes shipping options for a package. It always answers 200
// with a (possibly empty) result list; an empty list means no shipping is
// offered to the destination.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
    var pkg rate.Package
    if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
        return
    }
    if strings.TrimSpace(pkg.Destination.Country) == "" {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "destination country required")
        return
    }
    snap, err := s.store.Snapshot(r.Context())
    if err != nil {
        s.log.Error("load config snapshot", zap.Error(err))
        writeErrorJSON(w, http.StatusInternalServerError, "db_error", "db error")
        return
    }
    results := rate.Quote(pkg, snap)
    if results == nil {
        results = []rate.Result{}
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(QuoteResponse{Results: results})
}

// Zone administration

func (s *Server) handleSaveZone(w http.ResponseWriter, r *http.Request) {
    var z rate.Zone
    if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
        return
    }
    id, err := s.store.SaveZone(r.Context(), z)
    if err != nil {
        s.writeStoreError(w, err)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{"zone_id": id.String()})
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
    id, ok := parseID(w, r)
    if !ok {
        return
    }
    if err := s.store.DeleteZone(r.Context(), id); err != nil {
        s.writeStoreError(w, err)
        return
    }
    writeOK(w)
}

func (s *Server) handleReorderZones(w http.ResponseWriter, r *http.Request) {
    ids, ok := decodeIDList(w, r)
    if !ok {
        return
    }
    if err := s.store.ReorderZones(r.Context(), ids); err != nil {
        s.writeStoreError(w, err)
        return
    }
    writeOK(w)
}

// Rule administration

func (s *Server) handleSaveRule(w http.ResponseWriter, r *http.Request) {
    var rule rate.Rule
    if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
        return
    }
    id, err := s.store.SaveRule(r.Context(), rule)
    if err != nil {
        s.writeStoreError(w, err)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{"rule_id": id.String()})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
    id, ok := parseID(w, r)
    if !ok {
        return
    }
    if err := s.store.DeleteRule(r.Context(), id); err != nil {
        s.writeStoreError(w, err)
        return
    }
    writeOK(w)
}

func (s *Server) handleReorderRules(w http.ResponseWriter, r *http.Request) {
    ids, ok := decodeIDList(w, r)
    if !ok {
        return
    }
    if err := s.store.ReorderRules(r.Context(), ids); err != nil {
        s.writeStoreError(w, err)
        return
    }
    writeOK(w)
}

// Carrier method administration

func (s *Server) handleSaveMethodConfig(w http.ResponseWriter, r *http.Request) {
    methodID := chi.URLParam(r, "id")
    var cfg rate.MethodConfig
    if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
        return
    }
    if err := s.store.SaveMethodConfig(r.Context(), methodID, cfg); err != nil {
        s.writeStoreError(w, err)
        return
    }
    writeOK(w)
}

func (s *Server) handleLiveRate(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    var weight float64
    if v := q.Get("weight_kg"); v != "" {
        if f, err := parseFloat(v); err == nil {
            weight = f
        }
    }
    amount, err := s.gateway.LiveRate(r.Context(), carrier.LiveRateRequest{
        ToCountry: q.Get("to_country"),
        WeightKg:  weight,
    })
    if err != nil {
        s.writeGatewayError(w, err)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]float64{"amount": amount})
}

// Fulfillment

type LabelRequestBody struct {
    ToCountry   string  `json:"to_country"`
    ToState     string  `json:"to_state"`
    ToPostal    string  `json:"to_postal"`
    WeightKg    float64 `json:"weight_kg"`
    ServiceCode string  `json:"service_code"`
}

func (s *Server) handleGenerateLabel(w http.ResponseWriter, r *http.Request) {
    orderID := strings.TrimSpace(chi.URLParam(r, "id"))
    if orderID == "" {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "order id required")
        return
    }
    var body LabelRequestBody
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
        return
    }
    label, err := s.gateway.CreateLabel(r.Context(), carrier.LabelRequest{
        OrderID:     orderID,
        ToCountry:   body.ToCountry,
        ToState:     body.ToState,
        ToPostal:    body.ToPostal,
        WeightKg:    body.WeightKg,
        ServiceCode: body.ServiceCode,
    })
    if err != nil {
        s.writeGatewayError(w, err)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{
        "tracking_number": label.TrackingNumber,
        "label_url":       label.LabelURL,
    })
}

func (s *Server) handleTrackShipment(w http.ResponseWriter, r *http.Request) {
    code := strings.TrimSpace(chi.URLParam(r, "code"))
    if code == "" {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "code required")
        return
    }
    events, err := s.gateway.TrackShipment(r.Context(), code)
    if err != nil {
        s.writeGatewayError(w, err)
        return
    }
    if events == nil {
        events = []carrier.TrackingEvent{}
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]any{"events": events})
}

// Error mapping

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
    switch {
    case errors.Is(err, store.ErrNotFound):
        writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "not found")
    case isValidationError(err):
        writeErrorJSON(w, http.StatusBadRequest, "invalid_request", err.Error())
    default:
        s.log.Error("store error", zap.Error(err))
        writeErrorJSON(w, http.StatusInternalServerError, "db_error", "db error")
    }
}

// writeGatewayError surfaces carrier-reported errors verbatim with the
// upstream status, and everything else (timeouts, refused connections) as a
// 502 the admin UI offers to retry manually.
func (s *Server) writeGatewayError(w http.ResponseWriter, err error) {
    var apiErr *carrier.APIError
    if errors.As(err, &apiErr) {
        writeErrorJSON(w, apiErr.StatusCode, apiErr.Code, apiErr.Message)
        return
    }
    s.log.Warn("carrier gateway error", zap.Error(err))
    writeErrorJSON(w, http.StatusBadGateway, "carrier_unreachable", err.Error())
}

// isValidationError distinguishes bad input from infrastructure failure.
// Store save methods wrap validator errors with an "invalid" prefix and
// reorder methods return plain fmt errors; both are caller mistakes.
func isValidationError(err error) bool {
    msg := err.Error()
    return strings.HasPrefix(msg, "invalid ") ||
        strings.HasPrefix(msg, "reorder") ||
        strings.HasPrefix(msg, "unknown carrier method")
}

// writeErrorJSON writes a standardized JSON error response:
// {"error": {"code": string, "message": string}}
func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(map[string]any{
        "error": map[string]string{
            "code":    code,
            "message": message,
        },
    })
}

func writeOK(w http.ResponseWriter) {
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// requestIDMiddleware ensures X-Request-ID is set on the response.
// If provided in the request header, it is propagated; otherwise a UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
        if rid == "" {
            rid = uuid.New().String()
        }
        w.Header().Set("X-Request-ID", rid)
        next.ServeHTTP(w, r)
    })
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
    raw := strings.TrimSpace(chi.URLParam(r, "id"))
    id, err := uuid.Parse(raw)
    if err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "invalid id")
        return uuid.Nil, false
    }
    return id, true
}

func decodeIDList(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
    var body struct {
        IDs []string `json:"ids"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
        return nil, false
    }
    ids := make([]uuid.UUID, 0, len(body.IDs))
    for _, raw := range body.IDs {
        id, err := uuid.Parse(strings.TrimSpace(raw))
        if err != nil {
            writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "invalid id "+raw)
            return nil, false
        }
        ids = append(ids, id)
    }
    return ids, true
}

func parseFloat(s string) (float64, error) {
    var n json.Number = json.Number(s)
    return n.Float64()
}
