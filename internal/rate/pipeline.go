package rate

// Snapshot is the read-only configuration view one computation runs against.
// Each request loads its own snapshot, so concurrent quotes never share
// mutable state.
type Snapshot struct {
    Zones    []Zone
    Rules    []Rule
    Methods  map[string]MethodConfig
    Currency string
}

// Result is one quoted method for a package.
type Result struct {
    MethodID  string  `json:"method_id"`
    Label     string  `json:"label"`
    BaseRate  float64 `json:"base_rate"`
    FinalRate float64 `json:"rate"`
    Currency  string  `json:"currency"`
}

// Quote resolves the destination's zone, computes a base rate for every
// eligible method the zone offers, and applies the configured rules to each.
// Pure: no I/O, deterministic for a given package and snapshot. An empty
// result means no shipping is available to the destination, never an error.
func Quote(p Package, snap Snapshot) []Result {
    zone, ok := ResolveZone(p.Destination, snap.Zones)
    if !ok {
        return nil
    }
    m := Aggregate(p)

    results := make([]Result, 0, len(zone.Methods))
    for _, methodID := range zone.Methods {
        calc := NewByName(methodID)
        if calc == nil {
            continue
        }
        cfg, ok := snap.Methods[calc.MethodID()]
        if !ok {
            continue
        }
        base, ok := calc.Quote(m, cfg)
        if !ok {
            continue
        }
        results = append(results, Result{
            MethodID:  calc.MethodID(),
            Label:     methodLabel(calc.MethodID()),
            BaseRate:  base,
            FinalRate: ApplyRules(base, m, snap.Rules),
            Currency:  snap.Currency,
        })
    }
    return results
}

func methodLabel(methodID string) string {
    switch methodID {
    case "evri":
        return "Evri Standard"
    case "flat":
        return "Flat Rate"
    default:
        return methodID
    }
}
