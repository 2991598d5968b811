package rate

// LineItem is one cart line as submitted by the checkout flow.
type LineItem struct {
    ProductID string  `json:"product_id"`
    Quantity  int     `json:"quantity"`
    WeightKg  float64 `json:"weight_kg"`
    LengthCm  float64 `json:"length_cm"`
    WidthCm   float64 `json:"width_cm"`
    HeightCm  float64 `json:"height_cm"`
    UnitPrice float64 `json:"unit_price"`
    Shippable bool    `json:"shippable"`
}

// Destination is where the package is going.
type Destination struct {
    Country    string `json:"country"`
    State      string `json:"state,omitempty"`
    PostalCode string `json:"postal_code,omitempty"`
}

// Package is the immutable input to one rate computation. It is built fresh
// per checkout attempt and never mutated by the engine.
type Package struct {
    Items       []LineItem  `json:"items"`
    Destination Destination `json:"destination"`
}

// Metrics is the scalar reduction of a Package that conditions and
// calculators operate on.
//
// Weight and ItemCount cover shippable lines only: they describe the physical
// parcel. Subtotal covers every line, shippable or not, so that cart-value
// rules (e.g. free shipping over a threshold) see the whole order value even
// when part of it is digital.
type Metrics struct {
    WeightKg  float64
    ItemCount int
    Subtotal  float64
}

// Aggregate reduces a package to its metrics. An empty package yields
// all-zero metrics; lines with non-positive quantity are ignored.
func Aggregate(p Package) Metrics {
    var m Metrics
    for _, it := range p.Items {
        if it.Quantity <= 0 {
            continue
        }
        qty := float64(it.Quantity)
        m.Subtotal += it.UnitPrice * qty
        if !it.Shippable {
            continue
        }
        m.WeightKg += it.WeightKg * qty
        m.ItemCount += it.Quantity
    }
    return m
}
