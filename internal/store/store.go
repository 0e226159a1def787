// Package store is the durable proposal store. Lifecycle state lives in an
// explicit column guarded by a compare-and-set UPDATE, so the state machine
// is portable across storage backends and safe under concurrent callers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/patchwarden/internal/model"
)

var (
	// ErrNotFound is returned when no proposal exists for an id.
	ErrNotFound = errors.New("proposal not found")

	// ErrInvalidTransition is returned for transitions the state machine
	// does not allow. No state is mutated.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// allowed enumerates the forward-only state machine.
var allowed = map[model.State][]model.State{
	model.StatePending:   {model.StateCommitted},
	model.StateCommitted: {model.StateApplied, model.StateFailed},
}

func transitionAllowed(from, to model.State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

const schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id          TEXT PRIMARY KEY,
	repo_root   TEXT NOT NULL,
	proposer    TEXT NOT NULL,
	summary     TEXT NOT NULL,
	change_type TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	state       TEXT NOT NULL,
	retries     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS proposal_diffs (
	proposal_id TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	path        TEXT NOT NULL,
	patch       TEXT NOT NULL,
	PRIMARY KEY (proposal_id, seq)
);
CREATE TABLE IF NOT EXISTS attempts (
	proposal_id TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
	at          TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_proposals_state ON proposals(state, created_at);
`

// Store is a SQLite-backed proposal store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the proposal database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite allows one writer; serializing connections avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var idUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewID builds a creation-ordered proposal id from the proposer name,
// a UTC timestamp, and a random suffix.
func NewID(proposer string, at time.Time) string {
	name := idUnsafe.ReplaceAllString(strings.ToLower(proposer), "_")
	if name == "" {
		name = "unknown"
	}
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s_%s_%s", name, at.UTC().Format("20060102T150405Z"), suffix)
}

// Create records a new proposal in Pending state and returns its id.
// Diff content is immutable from this point on.
func (s *Store) Create(ctx context.Context, p *model.Proposal) (string, error) {
	if len(p.Diffs) == 0 {
		return "", fmt.Errorf("store: proposal has no diffs")
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.ID == "" {
		p.ID = NewID(p.Proposer, p.CreatedAt)
	}
	p.State = model.StatePending

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO proposals (id, repo_root, proposer, summary, change_type, created_at, state, retries)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		p.ID, p.RepoRoot, p.Proposer, p.Summary, p.ChangeType,
		p.CreatedAt.Format(time.RFC3339Nano), string(p.State))
	if err != nil {
		return "", fmt.Errorf("store: insert proposal: %w", err)
	}

	for i, d := range p.Diffs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO proposal_diffs (proposal_id, seq, path, patch) VALUES (?, ?, ?, ?)`,
			p.ID, i, d.Path, d.Patch)
		if err != nil {
			return "", fmt.Errorf("store: insert diff %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return p.ID, nil
}

// Get loads one proposal with its diffs and attempt history.
func (s *Store) Get(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, repo_root, proposer, summary, change_type, created_at, state, retries
		 FROM proposals WHERE id = ?`, id)

	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, patch FROM proposal_diffs WHERE proposal_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load diffs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d model.FileDiff
		if err := rows.Scan(&d.Path, &d.Patch); err != nil {
			return nil, fmt.Errorf("store: scan diff: %w", err)
		}
		p.Diffs = append(p.Diffs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.db.QueryContext(ctx,
		`SELECT at, from_state, to_state, outcome, detail FROM attempts
		 WHERE proposal_id = ? ORDER BY at`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load attempts: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a model.Attempt
		var at, from, to string
		if err := arows.Scan(&at, &from, &to, &a.Outcome, &a.Detail); err != nil {
			return nil, fmt.Errorf("store: scan attempt: %w", err)
		}
		a.At, _ = time.Parse(time.RFC3339Nano, at)
		a.FromState, a.ToState = model.State(from), model.State(to)
		p.Attempts = append(p.Attempts, a)
	}
	return p, arows.Err()
}

// List returns proposals oldest first, optionally filtered by state.
func (s *Store) List(ctx context.Context, states ...model.State) ([]*model.Proposal, error) {
	query := `SELECT id, repo_root, proposer, summary, change_type, created_at, state, retries
	          FROM proposals`
	var args []any
	if len(states) > 0 {
		marks := make([]string, len(states))
		for i, st := range states {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += " WHERE state IN (" + strings.Join(marks, ", ") + ")"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []*model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Transition atomically moves a proposal from one state to another.
// It succeeds only if the record is currently in from; a concurrent caller
// racing on the same transition loses and gets false. Disallowed state
// pairs return ErrInvalidTransition without touching the record.
func (s *Store) Transition(ctx context.Context, id string, from, to model.State) (bool, error) {
	if !transitionAllowed(from, to) {
		return false, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET state = ? WHERE id = ? AND state = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("store: transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	// CAS failed: distinguish a missing record from a lost race.
	var cur string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM proposals WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// RecordAttempt appends one transition attempt to the audit trail.
func (s *Store) RecordAttempt(ctx context.Context, id string, a model.Attempt) error {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (proposal_id, at, from_state, to_state, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, a.At.Format(time.RFC3339Nano), string(a.FromState), string(a.ToState),
		a.Outcome, a.Detail)
	if err != nil {
		return fmt.Errorf("store: record attempt: %w", err)
	}
	return nil
}

// BumpRetries increments and returns the proposal's retry count.
func (s *Store) BumpRetries(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET retries = retries + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("store: bump retries: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var retries int
	if err := s.db.QueryRowContext(ctx,
		`SELECT retries FROM proposals WHERE id = ?`, id).Scan(&retries); err != nil {
		return 0, err
	}
	return retries, nil
}

// Delete removes a Pending proposal. Cancellation is free before the
// Committed transition since no version-control state has been touched.
// Deleting a proposal in any later state is refused.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM proposals WHERE id = ? AND state = ?`, id, string(model.StatePending))
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var cur string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM proposals WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot delete proposal in state %s", ErrInvalidTransition, cur)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProposal(row scanner) (*model.Proposal, error) {
	var p model.Proposal
	var created, state string
	if err := row.Scan(&p.ID, &p.RepoRoot, &p.Proposer, &p.Summary, &p.ChangeType,
		&created, &state, &p.Retries); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	p.State = model.State(state)
	return &p, nil
}
