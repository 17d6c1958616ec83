package saldo

// =============================================================================
// RULES - Policy constants and exemptions
// =============================================================================

const (
	// GapMultiplier is the number of coverage-days each open position adds to
	// the quota.
	GapMultiplier = 6

	// DefaultEventReason marks event-driven staffing, which never counts
	// against the weekly quota and is never auto-approved.
	DefaultEventReason = "EVENTO"

	// DefaultExemptSentinel is the "unlimited" remaining balance reported for
	// exempt sectors.
	DefaultExemptSentinel = 999

	// DefaultMaxWorkDays is the longest request (consecutive days) accepted.
	DefaultMaxWorkDays = 7
)

// DefaultExemptSectors have no quota enforcement.
var DefaultExemptSectors = []string{"AQUAMANIA"}

// Rules holds the configuration values the engine needs from its environment.
// The zero value is not usable; start from DefaultRules.
type Rules struct {
	ExemptSectors  []string
	EventReason    string
	ExemptSentinel int
	MaxWorkDays    int
}

func DefaultRules() Rules {
	return Rules{
		ExemptSectors:  append([]string(nil), DefaultExemptSectors...),
		EventReason:    DefaultEventReason,
		ExemptSentinel: DefaultExemptSentinel,
		MaxWorkDays:    DefaultMaxWorkDays,
	}
}

// IsExemptSector reports whether sector skips quota enforcement.
func (r Rules) IsExemptSector(sector string) bool {
	for _, s := range r.ExemptSectors {
		if s == sector {
			return true
		}
	}
	return false
}

// IsEvent reports whether reason marks an event request.
func (r Rules) IsEvent(reason string) bool {
	return reason == r.EventReason
}
