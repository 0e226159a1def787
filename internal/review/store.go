package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/patchwarden/internal/model"
)

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey rejects review ids that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("review id must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("review id must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("review id contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed")
	}
	return nil
}

// Record is one persisted review: the requesting node, the action under
// review, the reviewer set, and each reviewer's decision.
type Record struct {
	ID         string                          `json:"id"`
	Node       string                          `json:"node"`
	Action     string                          `json:"action"`
	Reviewers  []string                        `json:"reviewers"`
	Threshold  int                             `json:"threshold"`
	Decisions  map[string]model.ReviewDecision `json:"decisions"`
	CreatedAt  time.Time                       `json:"created_at"`
	ResolvedAt *time.Time                      `json:"resolved_at,omitempty"`
}

// Approvals counts approve decisions.
func (r *Record) Approvals() int {
	n := 0
	for _, d := range r.Decisions {
		if d == model.DecisionApprove {
			n++
		}
	}
	return n
}

// Rejections counts reject decisions.
func (r *Record) Rejections() int {
	n := 0
	for _, d := range r.Decisions {
		if d == model.DecisionReject {
			n++
		}
	}
	return n
}

// Quorated reports whether approvals have reached the threshold.
// Rejections never count toward quorum.
func (r *Record) Quorated() bool {
	return r.Approvals() >= r.Threshold
}

// Unreachable reports whether quorum can no longer be reached because too
// many reviewers have rejected.
func (r *Record) Unreachable() bool {
	return len(r.Reviewers)-r.Rejections() < r.Threshold
}

// Store persists review records as JSON files, one per review.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create review directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put writes a record atomically.
func (s *Store) Put(r *Record) error {
	if err := validateKey(r.ID); err != nil {
		return fmt.Errorf("invalid review id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(s.path(r.ID), r)
}

// Get loads a record by id.
func (s *Store) Get(id string) (*Record, error) {
	if err := validateKey(id); err != nil {
		return nil, fmt.Errorf("invalid review id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns all records in the store.
func (s *Store) List() ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("review %q not found: %w", id, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) writeAtomic(path string, r *Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
