// Package gate promotes proposals past the governance boundary.
// INFORM and ALLOW changes promote automatically; GOVERN changes need a
// quorated review or settled precedent. FREE paths never enter the store.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/patchwarden/internal/audit"
	"github.com/ppiankov/patchwarden/internal/model"
	"github.com/ppiankov/patchwarden/internal/review"
	"github.com/ppiankov/patchwarden/internal/store"
)

var (
	// ErrNotQuorated means the GOVERN-tier review has not collected
	// enough approvals. The proposal stays Pending.
	ErrNotQuorated = errors.New("review has not reached quorum")

	// ErrReviewRequired means a GOVERN-tier promotion was attempted
	// without a review and without matching precedent.
	ErrReviewRequired = errors.New("GOVERN tier requires a quorated review")

	// ErrNotGoverned means the path tier excludes the change from the
	// proposal pipeline entirely.
	ErrNotGoverned = errors.New("FREE tier changes are not governed")

	// ErrReviewMismatch means the named review was opened for a different
	// proposal. A quorated review authorizes exactly the proposal it was
	// requested for, never any other.
	ErrReviewMismatch = errors.New("review does not name this proposal")
)

// Gate wires the proposal store, the review graph, and the audit ledger
// into the Pending→Committed promotion decision.
type Gate struct {
	Store  *store.Store
	Graph  *review.Graph // nil disables quorum promotion
	Ledger *audit.Log    // nil disables audit recording
}

// Promote moves a Pending proposal to Committed if the tier's governance
// requirements are met. For GOVERN, reviewID names the quorated review;
// an empty reviewID falls back to precedent lookup against the settled
// ledger of applied proposals.
func (g *Gate) Promote(ctx context.Context, id string, t model.Tier, reviewID string) error {
	if !t.Governed() {
		return ErrNotGoverned
	}

	p, err := g.Store.Get(ctx, id)
	if err != nil {
		return err
	}

	outcome := "auto"
	if t == model.TierGovern {
		outcome, err = g.checkGovern(ctx, p, reviewID)
		if err != nil {
			return err
		}
	}

	ok, err := g.Store.Transition(ctx, id, model.StatePending, model.StateCommitted)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: proposal %s is not pending", store.ErrInvalidTransition, id)
	}

	g.record(ctx, id, outcome)
	return nil
}

// checkGovern resolves the GOVERN gate: quorated review first, then
// settled precedent. Returns the promotion outcome label.
func (g *Gate) checkGovern(ctx context.Context, p *model.Proposal, reviewID string) (string, error) {
	if reviewID != "" {
		if g.Graph == nil {
			return "", ErrReviewRequired
		}
		r, err := g.Graph.Get(reviewID)
		if err != nil {
			return "", err
		}
		if r.Action != p.ID {
			return "", fmt.Errorf("%w: review %s is for %q", ErrReviewMismatch, reviewID, r.Action)
		}
		if !r.Quorated() {
			return "", fmt.Errorf("%w: %s", ErrNotQuorated, reviewID)
		}
		return "quorum:" + reviewID, nil
	}

	res, err := CheckPrecedent(ctx, g.Store, p.ChangeType, p.Summary)
	if err != nil {
		return "", err
	}
	if res.Decision != AutoApprove {
		return "", fmt.Errorf("%w: %s", ErrReviewRequired, res.Reason)
	}
	return "precedent:" + res.MatchedID, nil
}

func (g *Gate) record(ctx context.Context, id, outcome string) {
	_ = g.Store.RecordAttempt(ctx, id, model.Attempt{
		FromState: model.StatePending,
		ToState:   model.StateCommitted,
		Outcome:   "promoted",
		Detail:    outcome,
	})
	if g.Ledger != nil {
		_ = g.Ledger.Record(audit.Entry{
			Event:      audit.EventPromote,
			ProposalID: id,
			FromState:  string(model.StatePending),
			ToState:    string(model.StateCommitted),
			Outcome:    "promoted",
			Detail:     outcome,
		})
	}
}
