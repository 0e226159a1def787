package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/patchwarden/internal/model"
	"github.com/ppiankov/patchwarden/internal/store"
)

// Precedent decisions. Only novel proposals, outside the established
// envelope, halt for human ratification.
const (
	AutoApprove = "AUTO_APPROVE"
	Halt        = "HALT"
)

// patternMatchThreshold is the word-overlap ratio above which a prior
// ratified summary counts as precedent.
const patternMatchThreshold = 0.6

// PrecedentResult is the outcome of a precedent lookup.
type PrecedentResult struct {
	Decision   string  `json:"decision"`
	MatchedID  string  `json:"matched_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Stop words excluded from similarity comparison.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "for": true,
	"to": true, "of": true, "in": true, "on": true, "with": true, "is": true,
	"are": true, "was": true, "be": true, "by": true, "at": true, "from": true,
	"this": true, "that": true, "new": true, "add": true, "adds": true,
	"update": true, "updates": true, "fix": true, "fixes": true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// CheckPrecedent searches the settled ledger (Applied proposals) for a
// prior ratified decision matching the proposed change by type and
// summary. Exact hash match approves with full confidence; a same-type
// summary with high word overlap approves at that overlap. No match
// halts for human ratification.
func CheckPrecedent(ctx context.Context, st *store.Store, changeType, summary string) (PrecedentResult, error) {
	applied, err := st.List(ctx, model.StateApplied)
	if err != nil {
		return PrecedentResult{}, err
	}

	candidate := summaryHash(changeType, summary)

	for _, p := range applied {
		if summaryHash(p.ChangeType, p.Summary) == candidate {
			return PrecedentResult{
				Decision:   AutoApprove,
				MatchedID:  p.ID,
				Confidence: 1.0,
				Reason:     fmt.Sprintf("exact match: %s (hash %s)", p.ID, candidate),
			}, nil
		}
	}

	typeNorm := strings.ToLower(strings.TrimSpace(changeType))
	bestOverlap := 0.0
	bestID := ""
	for _, p := range applied {
		if strings.ToLower(strings.TrimSpace(p.ChangeType)) != typeNorm {
			continue
		}
		if overlap := wordOverlap(summary, p.Summary); overlap > bestOverlap {
			bestOverlap = overlap
			bestID = p.ID
		}
	}

	if bestOverlap >= patternMatchThreshold {
		return PrecedentResult{
			Decision:   AutoApprove,
			MatchedID:  bestID,
			Confidence: bestOverlap,
			Reason: fmt.Sprintf("pattern match: %s (type=%s, overlap=%.0f%%)",
				bestID, changeType, bestOverlap*100),
		}, nil
	}

	return PrecedentResult{
		Decision: Halt,
		Reason: fmt.Sprintf("no precedent for type=%q; quorum review required",
			changeType),
	}, nil
}

func tokens(text string) map[string]bool {
	words := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(text), " "))
	set := make(map[string]bool)
	for _, w := range words {
		if len(w) > 2 && !stopWords[w] {
			set[w] = true
		}
	}
	return set
}

func summaryHash(changeType, summary string) string {
	key := strings.ToLower(strings.TrimSpace(changeType + "|" + summary))
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:16]
}

// wordOverlap measures shared significant words relative to the smaller set.
func wordOverlap(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	shared := 0
	for w := range ta {
		if tb[w] {
			shared++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	return float64(shared) / float64(smaller)
}
