package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordAndVerifyChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries := []Entry{
		{Event: EventClassify, Path: "/repo/core/foo.py", Tier: 1, Outcome: "GOVERN"},
		{Event: EventPropose, ProposalID: "kart_x_1", Outcome: "pending"},
		{Event: EventApply, ProposalID: "kart_x_1", Outcome: "applied", CommitID: "abc123"},
	}
	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	log.Close()

	res := Verify(path)
	if !res.Valid {
		t.Errorf("chain invalid: %+v", res)
	}
	if res.Lines != len(entries) {
		t.Errorf("lines = %d, want %d", res.Lines, len(entries))
	}
}

func TestOpenRecoversChainTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	log, _ := Open(path)
	log.Record(Entry{Event: EventPropose, Outcome: "pending"})
	log.Close()

	// Reopen and append; chain must stay intact across restarts.
	log, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	log.Record(Entry{Event: EventPromote, Outcome: "committed"})
	log.Close()

	if res := Verify(path); !res.Valid || res.Lines != 2 {
		t.Errorf("chain broken after reopen: %+v", res)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	log, _ := Open(path)
	log.Record(Entry{Event: EventPropose, ProposalID: "a", Outcome: "pending"})
	log.Record(Entry{Event: EventPromote, ProposalID: "a", Outcome: "committed"})
	log.Close()

	data, _ := os.ReadFile(path)
	tampered := strings.Replace(string(data), `"pending"`, `"applied"`, 1)
	os.WriteFile(path, []byte(tampered), 0600)

	res := Verify(path)
	if res.Valid {
		t.Error("tampered ledger verified as valid")
	}
	if res.ErrorLine != 2 {
		t.Errorf("error line = %d, want 2 (first entry after the edit)", res.ErrorLine)
	}
}

func TestVerifyRejectsBadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	os.WriteFile(path, []byte(`{"ts":"x","event":"propose","outcome":"pending","prev_hash":"sha256:ff"}`+"\n"), 0600)

	res := Verify(path)
	if res.Valid || res.ErrorLine != 1 {
		t.Errorf("expected genesis failure at line 1: %+v", res)
	}
}
