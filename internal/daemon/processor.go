package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/patchwarden/internal/audit"
	"github.com/ppiankov/patchwarden/internal/document"
	"github.com/ppiankov/patchwarden/internal/gate"
	"github.com/ppiankov/patchwarden/internal/model"
	"github.com/ppiankov/patchwarden/internal/store"
	"github.com/ppiankov/patchwarden/internal/tier"
)

// Processor turns inbox proposal documents into stored proposals.
type Processor struct {
	Table    *tier.Table
	Store    *store.Store
	Gate     *gate.Gate
	Ledger   *audit.Log // nil disables audit recording
	RepoRoot string
	DoneDir  string // processed documents move here; empty leaves them in place
}

// Result is the outcome of processing one inbox document.
type Result struct {
	Path       string `json:"path"`
	ProposalID string `json:"proposal_id,omitempty"`
	Tier       string `json:"tier"`
	State      string `json:"state,omitempty"`
}

// Process reads one proposal document, classifies its touched paths, and
// files a proposal. The strictest tier across all touched paths governs
// the whole document. FREE documents are acknowledged without a proposal;
// INFORM and ALLOW proposals are promoted immediately; GOVERN proposals
// stay Pending until reviewed.
func (p *Processor) Process(ctx context.Context, path string) (*Result, error) {
	// Reject symlinks before reading; an inbox symlink must not pull in
	// arbitrary filesystem content.
	fi, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("rejected symlink: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	parsed, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", filepath.Base(path), err)
	}

	worst := p.classify(parsed.Diffs)

	res := &Result{Path: path, Tier: worst.Label()}

	if !worst.Governed() {
		p.finish(path)
		return res, nil
	}

	id, err := p.Store.Create(ctx, &model.Proposal{
		RepoRoot:   p.RepoRoot,
		Proposer:   parsed.Proposer,
		Summary:    parsed.Summary,
		ChangeType: parsed.ChangeType,
		Diffs:      parsed.Diffs,
	})
	if err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	res.ProposalID = id
	res.State = string(model.StatePending)

	if p.Ledger != nil {
		_ = p.Ledger.Record(audit.Entry{
			Event:      audit.EventPropose,
			ProposalID: id,
			Tier:       int(worst),
			Outcome:    "created",
			Detail:     filepath.Base(path),
		})
	}

	if worst != model.TierGovern {
		if err := p.Gate.Promote(ctx, id, worst, ""); err != nil {
			return res, fmt.Errorf("promote %s: %w", id, err)
		}
		res.State = string(model.StateCommitted)
	}

	p.finish(path)
	return res, nil
}

// classify returns the strictest tier across the document's touched paths.
// A diff with no recoverable path gets the default tier.
func (p *Processor) classify(diffs []model.FileDiff) model.Tier {
	worst := model.TierFree
	for _, d := range diffs {
		m := p.Table.Classify(d.Path)
		if p.Ledger != nil {
			_ = p.Ledger.Record(audit.Entry{
				Event:   audit.EventClassify,
				Path:    d.Path,
				Tier:    int(m.Tier),
				Outcome: m.Label,
				Detail:  m.Reason,
			})
		}
		if m.Tier < worst {
			worst = m.Tier
		}
	}
	return worst
}

// finish moves a processed document out of the inbox.
func (p *Processor) finish(path string) {
	if p.DoneDir == "" {
		return
	}
	if err := os.MkdirAll(p.DoneDir, 0755); err != nil {
		return
	}
	_ = os.Rename(path, filepath.Join(p.DoneDir, filepath.Base(path)))
}
