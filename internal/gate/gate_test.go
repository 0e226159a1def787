package gate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ppiankov/patchwarden/internal/model"
	"github.com/ppiankov/patchwarden/internal/review"
	"github.com/ppiankov/patchwarden/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "proposals.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createProposal(t *testing.T, st *store.Store, summary, changeType string) string {
	t.Helper()
	id, err := st.Create(context.Background(), &model.Proposal{
		RepoRoot:   "/repo",
		Proposer:   "kart_x_1",
		Summary:    summary,
		ChangeType: changeType,
		Diffs: []model.FileDiff{{
			Path:  "f.txt",
			Patch: "--- a/f.txt\n+++ b/f.txt\n@@ -1 +1 @@\n-a\n+b\n",
		}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func applyProposal(t *testing.T, st *store.Store, id string) {
	t.Helper()
	ctx := context.Background()
	if ok, err := st.Transition(ctx, id, model.StatePending, model.StateCommitted); err != nil || !ok {
		t.Fatalf("to committed: ok=%v err=%v", ok, err)
	}
	if ok, err := st.Transition(ctx, id, model.StateCommitted, model.StateApplied); err != nil || !ok {
		t.Fatalf("to applied: ok=%v err=%v", ok, err)
	}
}

func TestPromoteInformAutomatic(t *testing.T) {
	st := newTestStore(t)
	g := &Gate{Store: st}
	id := createProposal(t, st, "Update docs", "docs")

	if err := g.Promote(context.Background(), id, model.TierInform, ""); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	p, _ := st.Get(context.Background(), id)
	if p.State != model.StateCommitted {
		t.Errorf("state = %s, want committed", p.State)
	}
}

func TestPromoteAllowAutomatic(t *testing.T) {
	st := newTestStore(t)
	g := &Gate{Store: st}
	id := createProposal(t, st, "Add test scaffolding", "tests")

	if err := g.Promote(context.Background(), id, model.TierAllow, ""); err != nil {
		t.Fatalf("Promote: %v", err)
	}
}

func TestPromoteFreeRefused(t *testing.T) {
	st := newTestStore(t)
	g := &Gate{Store: st}
	id := createProposal(t, st, "Scratch note", "misc")

	if err := g.Promote(context.Background(), id, model.TierFree, ""); !errors.Is(err, ErrNotGoverned) {
		t.Errorf("expected ErrNotGoverned, got %v", err)
	}
	p, _ := st.Get(context.Background(), id)
	if p.State != model.StatePending {
		t.Errorf("FREE promotion mutated state to %s", p.State)
	}
}

func TestPromoteGovernRequiresQuorum(t *testing.T) {
	st := newTestStore(t)
	rs, _ := review.NewStore(t.TempDir())
	graph, err := review.NewGraph(rs, []string{"a", "b", "c"}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	g := &Gate{Store: st, Graph: graph}
	id := createProposal(t, st, "Amend core protocol", "core")

	reviewID, _ := graph.Request("node1", id)

	if err := g.Promote(context.Background(), id, model.TierGovern, reviewID); !errors.Is(err, ErrNotQuorated) {
		t.Errorf("expected ErrNotQuorated, got %v", err)
	}

	graph.Answer(reviewID, "a", true)
	graph.Answer(reviewID, "b", true)

	if err := g.Promote(context.Background(), id, model.TierGovern, reviewID); err != nil {
		t.Fatalf("Promote after quorum: %v", err)
	}
	p, _ := st.Get(context.Background(), id)
	if p.State != model.StateCommitted {
		t.Errorf("state = %s, want committed", p.State)
	}
}

func TestPromoteGovernReviewBoundToProposal(t *testing.T) {
	// A quorated review authorizes only the proposal it was opened for.
	// It must not work as a skeleton key for other pending proposals.
	st := newTestStore(t)
	rs, _ := review.NewStore(t.TempDir())
	graph, err := review.NewGraph(rs, []string{"sean"}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	g := &Gate{Store: st, Graph: graph}

	reviewed := createProposal(t, st, "Amend core protocol", "core")
	other := createProposal(t, st, "Rewrite archive index", "core")

	reviewID, _ := graph.Request("node1", reviewed)
	graph.Answer(reviewID, "sean", true)

	if err := g.Promote(context.Background(), other, model.TierGovern, reviewID); !errors.Is(err, ErrReviewMismatch) {
		t.Fatalf("foreign review accepted: %v", err)
	}
	p, _ := st.Get(context.Background(), other)
	if p.State != model.StatePending {
		t.Errorf("state = %s, want pending", p.State)
	}

	// The review still works for its own proposal.
	if err := g.Promote(context.Background(), reviewed, model.TierGovern, reviewID); err != nil {
		t.Fatalf("Promote with own review: %v", err)
	}
}

func TestPromoteGovernNoReviewNoPrecedent(t *testing.T) {
	st := newTestStore(t)
	g := &Gate{Store: st}
	id := createProposal(t, st, "Amend core protocol", "core")

	if err := g.Promote(context.Background(), id, model.TierGovern, ""); !errors.Is(err, ErrReviewRequired) {
		t.Errorf("expected ErrReviewRequired, got %v", err)
	}
}

func TestPromoteGovernByExactPrecedent(t *testing.T) {
	st := newTestStore(t)
	g := &Gate{Store: st}

	prior := createProposal(t, st, "Rotate signing keys", "security")
	applyProposal(t, st, prior)

	id := createProposal(t, st, "Rotate signing keys", "security")
	if err := g.Promote(context.Background(), id, model.TierGovern, ""); err != nil {
		t.Fatalf("Promote by precedent: %v", err)
	}
	p, _ := st.Get(context.Background(), id)
	if p.State != model.StateCommitted {
		t.Errorf("state = %s, want committed", p.State)
	}
}

func TestPromoteSecondCallFails(t *testing.T) {
	st := newTestStore(t)
	g := &Gate{Store: st}
	id := createProposal(t, st, "Update docs", "docs")

	if err := g.Promote(context.Background(), id, model.TierInform, ""); err != nil {
		t.Fatalf("first Promote: %v", err)
	}
	if err := g.Promote(context.Background(), id, model.TierInform, ""); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on repeat, got %v", err)
	}
}

func TestCheckPrecedentExactMatch(t *testing.T) {
	st := newTestStore(t)
	prior := createProposal(t, st, "Rotate signing keys", "security")
	applyProposal(t, st, prior)

	res, err := CheckPrecedent(context.Background(), st, "security", "Rotate Signing Keys")
	if err != nil {
		t.Fatalf("CheckPrecedent: %v", err)
	}
	if res.Decision != AutoApprove || res.Confidence != 1.0 {
		t.Errorf("result = %+v, want exact AutoApprove", res)
	}
	if res.MatchedID != prior {
		t.Errorf("matched %q, want %q", res.MatchedID, prior)
	}
}

func TestCheckPrecedentPatternMatch(t *testing.T) {
	st := newTestStore(t)
	prior := createProposal(t, st, "Rotate expired signing keys for bridge relay", "security")
	applyProposal(t, st, prior)

	res, err := CheckPrecedent(context.Background(), st,
		"security", "Rotate expired signing keys for archive relay")
	if err != nil {
		t.Fatalf("CheckPrecedent: %v", err)
	}
	if res.Decision != AutoApprove {
		t.Errorf("result = %+v, want pattern AutoApprove", res)
	}
	if res.Confidence < patternMatchThreshold {
		t.Errorf("confidence = %v, want >= %v", res.Confidence, patternMatchThreshold)
	}
}

func TestCheckPrecedentTypeMismatchHalts(t *testing.T) {
	st := newTestStore(t)
	prior := createProposal(t, st, "Rotate signing keys", "security")
	applyProposal(t, st, prior)

	res, err := CheckPrecedent(context.Background(), st, "core", "Rotate signing keys")
	if err != nil {
		t.Fatalf("CheckPrecedent: %v", err)
	}
	if res.Decision != Halt {
		t.Errorf("cross-type lookup approved: %+v", res)
	}
}

func TestCheckPrecedentIgnoresUnsettled(t *testing.T) {
	st := newTestStore(t)
	// Pending proposals are not precedent.
	createProposal(t, st, "Rotate signing keys", "security")

	res, err := CheckPrecedent(context.Background(), st, "security", "Rotate signing keys")
	if err != nil {
		t.Fatalf("CheckPrecedent: %v", err)
	}
	if res.Decision != Halt {
		t.Errorf("pending proposal counted as precedent: %+v", res)
	}
}
