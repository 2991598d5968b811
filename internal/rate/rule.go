package rate

import "github.com/google/uuid"

// ActionKind is what a matched rule does to the running rate.
type ActionKind string

const (
    ActionAdd      ActionKind = "add"
    ActionSubtract ActionKind = "subtract"
    ActionMultiply ActionKind = "multiply"
    ActionSet      ActionKind = "set"
)

// Action mutates a running rate by Amount.
type Action struct {
    Kind   ActionKind `json:"kind"`
    Amount float64    `json:"amount"`
}

// Rule is one administrator-defined rate adjustment: a conjunction of
// conditions plus one action. Rules are stored and evaluated in an explicit
// order because multiply does not commute with add/subtract.
type Rule struct {
    ID         uuid.UUID   `json:"id"`
    Name       string      `json:"name"`
    Conditions []Condition `json:"conditions"`
    Action     Action      `json:"action"`
}

// Matches reports whether every condition holds. An empty condition list
// matches unconditionally.
func (r Rule) Matches(m Metrics) bool {
    for _, c := range r.Conditions {
        if !c.Match(m) {
            return false
        }
    }
    return true
}

func (a Action) apply(v float64) float64 {
    switch a.Kind {
    case ActionAdd:
        return v + a.Amount
    case ActionSubtract:
        return v - a.Amount
    case ActionMultiply:
        return v * a.Amount
    case ActionSet:
        return a.Amount
    default:
        // Unknown kind is a configuration error; leave the rate untouched.
        return v
    }
}

// ApplyRules runs every rule against the metrics in list order and applies
// the actions of all matching rules cumulatively to the running rate. There
// is no first-match short-circuit: administrators sequence rules deliberately
// (surcharge first, percentage discount after) and every matching rule fires.
// The result is clamped at zero.
func ApplyRules(rate float64, m Metrics, rules []Rule) float64 {
    for _, r := range rules {
        if r.Matches(m) {
            rate = r.Action.apply(rate)
        }
    }
    if rate < 0 {
        return 0
    }
    return rate
}
