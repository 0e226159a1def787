package model

import "time"

// Tier is the governance risk tier of a file path.
// Lower rank = higher scrutiny. The rank doubles as the classify exit code.
type Tier int

const (
	TierGovern Tier = 1 // Quorum approval required
	TierInform Tier = 2 // Log and allow
	TierAllow  Tier = 3 // Proceed freely
	TierFree   Tier = 4 // Proceed immediately, no proposal
)

// Label returns the canonical tier label.
func (t Tier) Label() string {
	switch t {
	case TierGovern:
		return "GOVERN"
	case TierInform:
		return "INFORM"
	case TierAllow:
		return "ALLOW"
	case TierFree:
		return "FREE"
	default:
		return "UNKNOWN"
	}
}

// Policy returns the default handling policy for the tier.
func (t Tier) Policy() string {
	switch t {
	case TierGovern:
		return "mandatory_approval"
	case TierInform:
		return "log_and_allow"
	case TierAllow:
		return "allow"
	case TierFree:
		return "immediate"
	default:
		return "mandatory_approval"
	}
}

// Governed reports whether changes at this tier must go through the
// proposal pipeline. FREE paths bypass governance entirely.
func (t Tier) Governed() bool {
	return t != TierFree
}

// State is the lifecycle state of a proposal. Transitions are forward-only:
// pending → committed → applied | failed.
type State string

const (
	StatePending   State = "pending"
	StateCommitted State = "committed"
	StateApplied   State = "applied"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateApplied || s == StateFailed
}

// FileDiff is one file-level unified diff inside a proposal.
type FileDiff struct {
	Path  string `json:"path"`
	Patch string `json:"patch"`
}

// Attempt is one recorded transition or apply attempt on a proposal.
type Attempt struct {
	At        time.Time `json:"at"`
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

// Proposal is a pending change moving through the governance lifecycle.
// Diff content is immutable after creation; corrections are new proposals.
type Proposal struct {
	ID         string     `json:"id"`
	RepoRoot   string     `json:"repo_root"`
	Proposer   string     `json:"proposer"`
	Summary    string     `json:"summary"`
	ChangeType string     `json:"change_type"`
	CreatedAt  time.Time  `json:"created_at"`
	State      State      `json:"state"`
	Retries    int        `json:"retries"`
	Diffs      []FileDiff `json:"diffs"`
	Attempts   []Attempt  `json:"attempts,omitempty"`
}

// FailureStage classifies where an apply attempt failed.
type FailureStage string

const (
	StageValidate FailureStage = "validate"
	StageApply    FailureStage = "apply"
	StageCommit   FailureStage = "commit"
)

// PatchResult is the outcome of one apply attempt.
type PatchResult struct {
	ProposalID string       `json:"proposal_id"`
	OK         bool         `json:"ok"`
	CommitID   string       `json:"commit_id,omitempty"`
	Stage      FailureStage `json:"stage,omitempty"`
	Detail     string       `json:"detail,omitempty"`
}

// ReviewDecision is a single reviewer's verdict.
type ReviewDecision string

const (
	DecisionPending ReviewDecision = "pending"
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)
