// Package carrier is the external-API boundary for label creation, shipment
// tracking, and advisory live-rate lookup. Calls here block on the network
// and are only made from administrator workflows after an order is placed;
// the rate-quote pipeline never depends on them.
package carrier

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "go.uber.org/zap"
)

// DefaultTimeout bounds every gateway call. A stalled carrier API surfaces
// as a transport error to the admin, never as a hung request.
const DefaultTimeout = 30 * time.Second

// APIError is a carrier-reported failure (4xx/5xx with a payload). The
// message is surfaced verbatim to the operator and is never retried
// automatically.
type APIError struct {
    StatusCode int    `json:"status_code"`
    Code       string `json:"code"`
    Message    string `json:"message"`
}

func (e *APIError) Error() string {
    return fmt.Sprintf("carrier api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// LabelRequest describes the order the carrier should produce a label for.
type LabelRequest struct {
    OrderID     string  `json:"order_id"`
    ToCountry   string  `json:"to_country"`
    ToState     string  `json:"to_state,omitempty"`
    ToPostal    string  `json:"to_postal,omitempty"`
    WeightKg    float64 `json:"weight_kg"`
    ServiceCode string  `json:"service_code"`
}

// Label is the artifact returned by a successful createLabel call.
type Label struct {
    TrackingNumber string `json:"tracking_number"`
    LabelURL       string `json:"label_url"`
}

// TrackingEvent is one scan in a shipment's history.
type TrackingEvent struct {
    OccurredAt time.Time `json:"occurred_at"`
    Status     string    `json:"status"`
    Location   string    `json:"location"`
}

// LiveRateRequest asks the carrier for its own rate, used only as an
// advisory cross-check against the locally computed one.
type LiveRateRequest struct {
    ToCountry string  `json:"to_country"`
    WeightKg  float64 `json:"weight_kg"`
}

// Client talks to the carrier HTTP API. TestMode routes calls to the
// carrier's sandbox path.
type Client struct {
    baseURL  string
    apiKey   string
    testMode bool
    http     *http.Client
    log      *zap.Logger
}

func NewClient(baseURL, apiKey string, testMode bool, log *zap.Logger) *Client {
    if log == nil {
        log = zap.NewNop()
    }
    return &Client{
        baseURL:  strings.TrimRight(baseURL, "/"),
        apiKey:   apiKey,
        testMode: testMode,
        http:     &http.Client{Timeout: DefaultTimeout},
        log:      log,
    }
}

// WithTimeout overrides the call timeout; tests use this to keep the
// stalled-server case fast.
func (c *Client) WithTimeout(d time.Duration) *Client {
    c.http.Timeout = d
    return c
}

// CreateLabel asks the carrier to produce a shipping label for an order.
func (c *Client) CreateLabel(ctx context.Context, req LabelRequest) (Label, error) {
    var label Label
    if err := c.do(ctx, http.MethodPost, "/labels", req, &label); err != nil {
        return Label{}, err
    }
    return label, nil
}

// TrackShipment returns the scan history for a tracking number.
func (c *Client) TrackShipment(ctx context.Context, trackingNumber string) ([]TrackingEvent, error) {
    var resp struct {
        Events []TrackingEvent `json:"events"`
    }
    path := "/trackings/" + url.PathEscape(strings.TrimSpace(trackingNumber))
    if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
        return nil, err
    }
    return resp.Events, nil
}

// LiveRate fetches the carrier's own quote for a package. Advisory only.
func (c *Client) LiveRate(ctx context.Context, req LiveRateRequest) (float64, error) {
    var resp struct {
        Amount float64 `json:"amount"`
    }
    if err := c.do(ctx, http.MethodPost, "/rates", req, &resp); err != nil {
        return 0, err
    }
    return resp.Amount, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
    u := c.baseURL
    if c.testMode {
        u += "/test"
    }
    u += path

    var reader io.Reader
    if body != nil {
        raw, err := json.Marshal(body)
        if err != nil {
            return err
        }
        reader = bytes.NewReader(raw)
    }
    req, err := http.NewRequestWithContext(ctx, method, u, reader)
    if err != nil {
        return err
    }
    req.Header.Set("Authorization", "Bearer "+c.apiKey)
    if body != nil {
        req.Header.Set("Content-Type", "application/json")
    }

    resp, err := c.http.Do(req)
    if err != nil {
        c.log.Warn("carrier call failed", zap.String("path", path), zap.Error(err))
        return fmt.Errorf("carrier transport: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode >= 400 {
        apiErr := &APIError{StatusCode: resp.StatusCode, Code: "carrier_error"}
        var payload struct {
            Code    string `json:"code"`
            Message string `json:"message"`
        }
        raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
        if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
            if payload.Code != "" {
                apiErr.Code = payload.Code
            }
            apiErr.Message = payload.Message
        } else {
            apiErr.Message = strings.TrimSpace(string(raw))
        }
        c.log.Warn("carrier reported error",
            zap.String("path", path),
            zap.Int("status", resp.StatusCode),
            zap.String("message", apiErr.Message))
        return apiErr
    }

    if out == nil {
        return nil
    }
    if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
        return fmt.Errorf("carrier response: %w", err)
    }
    return nil
}
