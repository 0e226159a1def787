package tier

import "github.com/ppiankov/patchwarden/internal/model"

// Match is the result of classifying one path.
type Match struct {
	Path           string     `json:"path"`
	Tier           model.Tier `json:"tier"`
	Label          string     `json:"label"`
	Reason         string     `json:"reason"`
	MatchedPattern string     `json:"matched_pattern,omitempty"`
}

// defaultReason is reported when no rule matched. Unknown paths fail safe
// toward caution: INFORM, never FREE.
const defaultReason = "Unknown path — defaulting to inform-and-allow"

// Classify maps a path to its governance tier. Pure and deterministic:
// the same path always yields the same Match. Rule-sets are checked in
// rising tier order, first match wins.
func (t *Table) Classify(path string) Match {
	for _, set := range t.sets {
		for _, r := range set.rules {
			if !r.pattern.MatchString(path) {
				continue
			}
			if r.exclude != nil && r.exclude.MatchString(path) {
				continue
			}
			return Match{
				Path:           path,
				Tier:           set.tier,
				Label:          set.tier.Label(),
				Reason:         set.reason,
				MatchedPattern: r.source,
			}
		}
	}
	return Match{
		Path:   path,
		Tier:   model.TierInform,
		Label:  model.TierInform.Label(),
		Reason: defaultReason,
	}
}
