/*
Package factory provides JSON to Go rules conversion.

PURPOSE:
  Converts a JSON rules document into saldo.Rules. Operators can change which
  sectors are exempt, which reason marks an event, and the longest accepted
  request without a rebuild.

JSON SCHEMA:
  {
    "exempt_sectors": ["AQUAMANIA"],
    "event_reason": "EVENTO",
    "exempt_sentinel": 999,
    "max_work_days": 7
  }

  Every field is optional. Missing fields keep the value from
  saldo.DefaultRules(). An explicit empty "exempt_sectors" list disables all
  exemptions.

NOT CONFIGURABLE:
  The gap multiplier (6 coverage-days per open position) is part of the
  balance formula, see saldo.GapMultiplier.

USAGE:
  f := factory.NewRulesFactory()
  rules, err := f.LoadFile("/etc/extras/rules.json")

SEE ALSO:
  - saldo/rules.go: Rules type and defaults
  - config/config.go: EXTRAS_RULES_FILE
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of saldo.Rules.
type RulesJSON struct {
	ExemptSectors  *[]string `json:"exempt_sectors,omitempty"`
	EventReason    *string   `json:"event_reason,omitempty"`
	ExemptSentinel *int      `json:"exempt_sentinel,omitempty"`
	MaxWorkDays    *int      `json:"max_work_days,omitempty"`
}

// maxWorkDaysLimit caps max_work_days; a request never spans more than a month.
const maxWorkDaysLimit = 31

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts JSON rules to saldo.Rules.
type RulesFactory struct{}

// NewRulesFactory creates a new rules factory.
func NewRulesFactory() *RulesFactory {
	return &RulesFactory{}
}

// ParseRules parses a JSON string into Rules.
func (f *RulesFactory) ParseRules(jsonStr string) (saldo.Rules, error) {
	var rj RulesJSON
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rj); err != nil {
		return saldo.Rules{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// LoadFile reads and parses a rules file. An empty path yields the defaults.
func (f *RulesFactory) LoadFile(path string) (saldo.Rules, error) {
	if path == "" {
		return saldo.DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return saldo.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return f.ParseRules(string(data))
}

// FromJSON converts RulesJSON to saldo.Rules, filling defaults.
func (f *RulesFactory) FromJSON(rj RulesJSON) (saldo.Rules, error) {
	rules := saldo.DefaultRules()

	if rj.ExemptSectors != nil {
		rules.ExemptSectors = nil
		for _, s := range *rj.ExemptSectors {
			if strings.TrimSpace(s) == "" {
				return saldo.Rules{}, &saldo.ValidationError{Field: "exempt_sectors", Message: "sector names must not be blank"}
			}
			rules.ExemptSectors = append(rules.ExemptSectors, s)
		}
	}

	if rj.EventReason != nil {
		if strings.TrimSpace(*rj.EventReason) == "" {
			return saldo.Rules{}, &saldo.ValidationError{Field: "event_reason", Message: "must not be blank"}
		}
		rules.EventReason = *rj.EventReason
	}

	if rj.ExemptSentinel != nil {
		rules.ExemptSentinel = *rj.ExemptSentinel
	}

	if rj.MaxWorkDays != nil {
		if *rj.MaxWorkDays < 1 || *rj.MaxWorkDays > maxWorkDaysLimit {
			return saldo.Rules{}, &saldo.ValidationError{
				Field:   "max_work_days",
				Message: fmt.Sprintf("must be between 1 and %d, got %d", maxWorkDaysLimit, *rj.MaxWorkDays),
			}
		}
		rules.MaxWorkDays = *rj.MaxWorkDays
	}

	// An exempt sector must fit any accepted request.
	if rules.ExemptSentinel < rules.MaxWorkDays {
		return saldo.Rules{}, &saldo.ValidationError{
			Field:   "exempt_sentinel",
			Message: fmt.Sprintf("must be >= max_work_days (%d), got %d", rules.MaxWorkDays, rules.ExemptSentinel),
		}
	}

	return rules, nil
}

// ToJSON converts Rules to RulesJSON with every field set.
func (f *RulesFactory) ToJSON(rules saldo.Rules) RulesJSON {
	sectors := append([]string{}, rules.ExemptSectors...)
	reason := rules.EventReason
	sentinel := rules.ExemptSentinel
	maxDays := rules.MaxWorkDays
	return RulesJSON{
		ExemptSectors:  &sectors,
		EventReason:    &reason,
		ExemptSentinel: &sentinel,
		MaxWorkDays:    &maxDays,
	}
}
