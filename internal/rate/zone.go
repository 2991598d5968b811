package rate

import (
    "strings"

    "github.com/google/uuid"
)

// MatcherType is the granularity of a zone location matcher.
type MatcherType string

const (
    MatchContinent MatcherType = "continent"
    MatchCountry   MatcherType = "country"
    MatchState     MatcherType = "state"
)

// Matcher matches a destination at one granularity. Value is an ISO country
// code for country matchers, a continent code (EU, NA, SA, AS, AF, OC, AN)
// for continent matchers, and "CC:SS" (country:state) for state matchers.
type Matcher struct {
    Type  MatcherType `json:"type"`
    Value string      `json:"value"`
}

// Zone groups destinations and lists the carrier methods offered there.
// Zones are evaluated in administrator-defined order; Everywhere marks a
// catch-all zone with no matchers.
type Zone struct {
    ID         uuid.UUID `json:"id"`
    Name       string    `json:"name"`
    Everywhere bool      `json:"everywhere"`
    Matchers   []Matcher `json:"matchers"`
    Methods    []string  `json:"methods"`
}

func (mt Matcher) matches(d Destination) bool {
    switch mt.Type {
    case MatchContinent:
        return strings.EqualFold(continentOf(d.Country), mt.Value)
    case MatchCountry:
        return strings.EqualFold(d.Country, mt.Value)
    case MatchState:
        country, state, ok := strings.Cut(mt.Value, ":")
        if !ok {
            return false
        }
        return strings.EqualFold(d.Country, country) && strings.EqualFold(d.State, state)
    default:
        return false
    }
}

// Contains reports whether the destination falls inside the zone.
func (z Zone) Contains(d Destination) bool {
    if z.Everywhere {
        return true
    }
    for _, m := range z.Matchers {
        if m.matches(d) {
            return true
        }
    }
    return false
}

// ResolveZone returns the first zone containing the destination. The first
// match wins on list order alone; administrators place more specific zones
// earlier. ok is false when no zone matches, meaning no shipping is offered
// to that destination.
func ResolveZone(d Destination, zones []Zone) (Zone, bool) {
    for _, z := range zones {
        if z.Contains(d) {
            return z, true
        }
    }
    return Zone{}, false
}

// continentOf maps an ISO 3166-1 alpha-2 country code to a continent code.
// Unknown countries map to "" and never match a continent matcher.
func continentOf(country string) string {
    c, ok := continents[strings.ToUpper(strings.TrimSpace(country))]
    if !ok {
        return ""
    }
    return c
}

var continents = map[string]string{
    // Europe
    "AT": "EU", "BE": "EU", "BG": "EU", "CH": "EU", "CZ": "EU", "DE": "EU",
    "DK": "EU", "EE": "EU", "ES": "EU", "FI": "EU", "FR": "EU", "GB": "EU",
    "GR": "EU", "HR": "EU", "HU": "EU", "IE": "EU", "IT": "EU", "LT": "EU",
    "LU": "EU", "LV": "EU", "NL": "EU", "NO": "EU", "PL": "EU", "PT": "EU",
    "RO": "EU", "SE": "EU", "SI": "EU", "SK": "EU", "UA": "EU",
    // North America
    "CA": "NA", "MX": "NA", "US": "NA",
    // South America
    "AR": "SA", "BR": "SA", "CL": "SA", "CO": "SA", "PE": "SA", "UY": "SA",
    // Asia
    "AE": "AS", "CN": "AS", "HK": "AS", "ID": "AS", "IL": "AS", "IN": "AS",
    "JP": "AS", "KR": "AS", "MY": "AS", "PH": "AS", "SA": "AS", "SG": "AS",
    "TH": "AS", "TR": "AS", "TW": "AS", "VN": "AS",
    // Africa
    "EG": "AF", "KE": "AF", "MA": "AF", "NG": "AF", "ZA": "AF",
    // Oceania
    "AU": "OC", "FJ": "OC", "NZ": "OC",
}
