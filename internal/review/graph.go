// Package review is the quorum gate for GOVERN-tier promotion. Each review
// carries an explicit reviewer set and a quorum threshold supplied at
// configuration time, never derived from an arbitrary "first" node or a
// formula keyed to total node count.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/patchwarden/internal/model"
)

var (
	// ErrNoQuorumPolicy means the reviewer group size has no known quorum
	// and no explicit threshold was configured. The generalized formula
	// for arbitrary group sizes is deliberately not guessed at.
	ErrNoQuorumPolicy = errors.New("no quorum policy for reviewer group size")

	// ErrUnknownReviewer means the answering identity is not in the
	// review's reviewer set.
	ErrUnknownReviewer = errors.New("reviewer not in review set")

	// ErrAlreadyAnswered means the reviewer has already recorded a decision.
	ErrAlreadyAnswered = errors.New("reviewer has already answered")
)

// QuorumFunc returns the approval threshold for a reviewer group of the
// given size, or an error if the size has no defined policy.
type QuorumFunc func(total int) (int, error)

// DefaultQuorum implements the two observed network policies: 1-of-1 and
// 2-of-3. Any other group size requires an explicit threshold.
func DefaultQuorum(total int) (int, error) {
	switch total {
	case 1:
		return 1, nil
	case 3:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrNoQuorumPolicy, total)
}

// FixedThreshold returns a QuorumFunc with an explicitly configured
// threshold, for group sizes DefaultQuorum refuses.
func FixedThreshold(n int) QuorumFunc {
	return func(total int) (int, error) {
		if n < 1 || n > total {
			return 0, fmt.Errorf("threshold %d invalid for %d reviewers", n, total)
		}
		return n, nil
	}
}

// Graph manages reviews across a fixed reviewer set.
type Graph struct {
	reviewers []string
	threshold int
	store     *Store
}

// NewGraph builds a review graph for the given reviewer set. The quorum
// threshold is resolved once, up front, so a misconfigured group size
// fails at startup rather than at promotion time.
func NewGraph(store *Store, reviewers []string, quorum QuorumFunc) (*Graph, error) {
	if len(reviewers) == 0 {
		return nil, fmt.Errorf("reviewer set must not be empty")
	}
	if quorum == nil {
		quorum = DefaultQuorum
	}
	threshold, err := quorum(len(reviewers))
	if err != nil {
		return nil, err
	}
	return &Graph{reviewers: reviewers, threshold: threshold, store: store}, nil
}

// Request opens a review for an action on behalf of a node and returns
// the review id.
func (g *Graph) Request(node, action string) (string, error) {
	r := &Record{
		ID:        uuid.NewString(),
		Node:      node,
		Action:    action,
		Reviewers: append([]string(nil), g.reviewers...),
		Threshold: g.threshold,
		Decisions: make(map[string]model.ReviewDecision),
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.Put(r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// Answer records one reviewer's decision. Each reviewer answers at most
// once; decisions are never overwritten.
func (g *Graph) Answer(reviewID, reviewer string, approve bool) error {
	r, err := g.store.Get(reviewID)
	if err != nil {
		return err
	}

	found := false
	for _, rv := range r.Reviewers {
		if rv == reviewer {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownReviewer, reviewer)
	}
	if _, ok := r.Decisions[reviewer]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyAnswered, reviewer)
	}

	if approve {
		r.Decisions[reviewer] = model.DecisionApprove
	} else {
		r.Decisions[reviewer] = model.DecisionReject
	}

	if (r.Quorated() || r.Unreachable()) && r.ResolvedAt == nil {
		now := time.Now().UTC()
		r.ResolvedAt = &now
	}

	return g.store.Put(r)
}

// IsQuorated reports whether the review has collected enough approvals.
func (g *Graph) IsQuorated(reviewID string) (bool, error) {
	r, err := g.store.Get(reviewID)
	if err != nil {
		return false, err
	}
	return r.Quorated(), nil
}

// Get returns the review record.
func (g *Graph) Get(reviewID string) (*Record, error) {
	return g.store.Get(reviewID)
}
