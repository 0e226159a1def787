package audit

// Event names the kind of governance activity recorded in an entry.
type Event string

const (
	EventClassify   Event = "classify"
	EventPropose    Event = "propose"
	EventPromote    Event = "promote"
	EventTransition Event = "transition"
	EventApply      Event = "apply"
)

// Entry is one line in the hash-chained JSONL governance ledger.
// All fields are flat scalars to guarantee deterministic json.Marshal
// field order for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	Event      Event  `json:"event"`
	ProposalID string `json:"proposal_id,omitempty"`
	Path       string `json:"path,omitempty"`
	Tier       int    `json:"tier,omitempty"`
	FromState  string `json:"from_state,omitempty"`
	ToState    string `json:"to_state,omitempty"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	CommitID   string `json:"commit_id,omitempty"`
	PrevHash   string `json:"prev_hash"`
}
