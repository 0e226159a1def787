// Package applier executes Committed proposals against the working tree:
// validate the combined patch, apply it, commit, and settle the proposal
// state. Multi-file proposals are all-or-nothing.
package applier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/patchwarden/internal/audit"
	"github.com/ppiankov/patchwarden/internal/document"
	"github.com/ppiankov/patchwarden/internal/model"
	"github.com/ppiankov/patchwarden/internal/store"
	"github.com/ppiankov/patchwarden/internal/vcs"
)

// DefaultRetryBudget is the number of failed apply attempts after which a
// Committed proposal settles as Failed.
const DefaultRetryBudget = 3

var (
	// ErrNotCommitted means the proposal is not in the Committed state, so
	// there is nothing to apply. Applying an already Applied proposal is a
	// refused no-op, not a re-execution.
	ErrNotCommitted = errors.New("proposal is not committed")

	// ErrRetryBudgetExhausted means repeated apply attempts failed and the
	// proposal has settled as Failed.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// BatchResult summarizes one ApplyAll run.
type BatchResult struct {
	Applied int                  `json:"applied"`
	Failed  int                  `json:"failed"`
	Results []*model.PatchResult `json:"results,omitempty"`
}

// Applier drives Committed proposals through validate, apply, and commit.
type Applier struct {
	Store   *store.Store
	Backend vcs.Backend
	Ledger  *audit.Log // nil disables audit recording

	// RetryBudget caps failed attempts per proposal; zero means
	// DefaultRetryBudget.
	RetryBudget int

	// CoAuthor, when set, is appended to commit messages as a
	// Co-Authored-By trailer.
	CoAuthor string

	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

// repoLock serializes applies per repository root. Two proposals against
// the same working tree must never interleave.
func (a *Applier) repoLock(root string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.repoLocks == nil {
		a.repoLocks = make(map[string]*sync.Mutex)
	}
	l, ok := a.repoLocks[root]
	if !ok {
		l = &sync.Mutex{}
		a.repoLocks[root] = l
	}
	return l
}

func (a *Applier) budget() int {
	if a.RetryBudget > 0 {
		return a.RetryBudget
	}
	return DefaultRetryBudget
}

// DryRun validates a Committed proposal's combined patch against the
// working tree without mutating anything.
func (a *Applier) DryRun(ctx context.Context, id string) (*model.PatchResult, error) {
	p, err := a.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateCommitted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCommitted, id, p.State)
	}

	res := &model.PatchResult{ProposalID: id}
	patch := document.CombineDiffs(p.Diffs)
	if err := a.Backend.ValidatePatch(ctx, p.RepoRoot, patch); err != nil {
		res.Stage = model.StageValidate
		res.Detail = err.Error()
		return res, nil
	}
	res.OK = true
	return res, nil
}

// Apply executes one Committed proposal: validate the combined patch,
// apply it, commit, then settle the state to Applied. A failed attempt
// leaves the proposal Committed until the retry budget runs out, at which
// point it settles as Failed. The working tree is never auto-reverted;
// partial state after a commit failure is left for the operator.
func (a *Applier) Apply(ctx context.Context, id string) (*model.PatchResult, error) {
	p, err := a.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateCommitted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCommitted, id, p.State)
	}

	lock := a.repoLock(p.RepoRoot)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: a concurrent applier may have settled the
	// proposal while we waited. Touching a terminal proposal's retries or
	// attempts here would corrupt its history.
	p, err = a.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.State != model.StateCommitted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCommitted, id, p.State)
	}

	res := a.attempt(ctx, p)
	if res.OK {
		if ok, err := a.Store.Transition(ctx, id, model.StateCommitted, model.StateApplied); err != nil {
			return res, err
		} else if !ok {
			return res, fmt.Errorf("%w: %s settled concurrently", ErrNotCommitted, id)
		}
		a.recordAttempt(ctx, id, model.StateApplied, "applied", "commit "+res.CommitID)
		a.recordSettle(id, model.StateApplied, "applied", res.CommitID)
		return res, nil
	}

	a.recordAttempt(ctx, id, model.StateCommitted, "attempt_failed",
		fmt.Sprintf("%s: %s", res.Stage, res.Detail))
	a.recordLedger(id, "attempt_failed", string(res.Stage), "")

	retries, err := a.Store.BumpRetries(ctx, id)
	if err != nil {
		return res, err
	}
	if retries >= a.budget() {
		if ok, err := a.Store.Transition(ctx, id, model.StateCommitted, model.StateFailed); err != nil {
			return res, err
		} else if ok {
			a.recordAttempt(ctx, id, model.StateFailed, "failed",
				fmt.Sprintf("retry budget exhausted after %d attempts", retries))
			a.recordSettle(id, model.StateFailed, "failed", "")
		}
		return res, fmt.Errorf("%w: %s after %d attempts", ErrRetryBudgetExhausted, id, retries)
	}
	return res, nil
}

// attempt runs the validate/apply/commit sequence once and classifies any
// failure by stage.
func (a *Applier) attempt(ctx context.Context, p *model.Proposal) *model.PatchResult {
	res := &model.PatchResult{ProposalID: p.ID}
	patch := document.CombineDiffs(p.Diffs)

	if err := a.Backend.ValidatePatch(ctx, p.RepoRoot, patch); err != nil {
		res.Stage = model.StageValidate
		res.Detail = err.Error()
		return res
	}
	if err := a.Backend.ApplyPatch(ctx, p.RepoRoot, patch); err != nil {
		res.Stage = model.StageApply
		res.Detail = err.Error()
		return res
	}

	commitID, err := a.Backend.Commit(ctx, p.RepoRoot, a.commitMessage(p))
	if err != nil {
		res.Stage = model.StageCommit
		res.Detail = err.Error()
		return res
	}

	res.OK = true
	res.CommitID = commitID
	return res
}

func (a *Applier) commitMessage(p *model.Proposal) string {
	msg := fmt.Sprintf("%s\n\nProposed-By: %s\nProposal-ID: %s", p.Summary, p.Proposer, p.ID)
	if a.CoAuthor != "" {
		msg += "\nCo-Authored-By: " + a.CoAuthor
	}
	return msg
}

// ApplyAll applies every Committed proposal, oldest first. A failure does
// not stop the batch; later proposals still get their attempt. An empty
// batch returns zero counts.
func (a *Applier) ApplyAll(ctx context.Context) (*BatchResult, error) {
	pending, err := a.Store.List(ctx, model.StateCommitted)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	for _, p := range pending {
		res, err := a.Apply(ctx, p.ID)
		if res != nil {
			batch.Results = append(batch.Results, res)
		}
		switch {
		case err == nil && res.OK:
			batch.Applied++
		default:
			batch.Failed++
		}
	}
	return batch, nil
}

func (a *Applier) recordAttempt(ctx context.Context, id string, to model.State, outcome, detail string) {
	_ = a.Store.RecordAttempt(ctx, id, model.Attempt{
		FromState: model.StateCommitted,
		ToState:   to,
		Outcome:   outcome,
		Detail:    detail,
	})
}

func (a *Applier) recordLedger(id, outcome, detail, commitID string) {
	if a.Ledger == nil {
		return
	}
	_ = a.Ledger.Record(audit.Entry{
		Event:      audit.EventApply,
		ProposalID: id,
		Outcome:    outcome,
		Detail:     detail,
		CommitID:   commitID,
	})
}

// recordSettle writes the terminal state transition to the ledger.
func (a *Applier) recordSettle(id string, to model.State, outcome, commitID string) {
	if a.Ledger == nil {
		return
	}
	_ = a.Ledger.Record(audit.Entry{
		Event:      audit.EventTransition,
		ProposalID: id,
		FromState:  string(model.StateCommitted),
		ToState:    string(to),
		Outcome:    outcome,
		CommitID:   commitID,
	})
}
