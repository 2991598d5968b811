package rate

// Metric names a package measurement a condition can compare against.
type Metric string

const (
    MetricWeight    Metric = "weight"
    MetricItemCount Metric = "item_count"
    MetricSubtotal  Metric = "subtotal"
)

// Operator is a relational comparison.
type Operator string

const (
    OpEq  Operator = "=="
    OpNeq Operator = "!="
    OpGt  Operator = ">"
    OpGte Operator = ">="
    OpLt  Operator = "<"
    OpLte Operator = "<="
)

// Condition compares one metric against a threshold.
type Condition struct {
    Metric    Metric   `json:"metric"`
    Operator  Operator `json:"operator"`
    Threshold float64  `json:"threshold"`
}

// Match reports whether the condition holds for the given metrics.
// An unknown metric or operator is a configuration error and evaluates to
// false, so one malformed condition disables its rule instead of aborting
// the computation. Conditions are validated when saved; this is the
// last-resort behavior for stale stored data.
func (c Condition) Match(m Metrics) bool {
    var v float64
    switch c.Metric {
    case MetricWeight:
        v = m.WeightKg
    case MetricItemCount:
        v = float64(m.ItemCount)
    case MetricSubtotal:
        v = m.Subtotal
    default:
        return false
    }
    switch c.Operator {
    case OpEq:
        return v == c.Threshold
    case OpNeq:
        return v != c.Threshold
    case OpGt:
        return v > c.Threshold
    case OpGte:
        return v >= c.Threshold
    case OpLt:
        return v < c.Threshold
    case OpLte:
        return v <= c.Threshold
    default:
        return false
    }
}
