package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestIsProposalFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/inbox/change.proposal", true},
		{"/inbox/change.proposal.tmp", false},
		{"/inbox/change.json", false},
		{"/inbox/notes.txt", false},
	}
	for _, c := range cases {
		if got := isProposalFile(c.path); got != c.want {
			t.Errorf("isProposalFile(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestScanExisting(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.proposal"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "b.proposal.tmp"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x"), 0644)

	var got []string
	err := ScanExisting(dir, func(path string) {
		got = append(got, filepath.Base(path))
	})
	if err != nil {
		t.Fatalf("ScanExisting: %v", err)
	}
	if len(got) != 1 || got[0] != "a.proposal" {
		t.Errorf("handled = %v, want [a.proposal]", got)
	}
}

func TestScanExistingMissingDir(t *testing.T) {
	err := ScanExisting(filepath.Join(t.TempDir(), "nope"), func(string) {
		t.Error("handler called for missing directory")
	})
	if err != nil {
		t.Errorf("missing inbox should be tolerated: %v", err)
	}
}

func TestPollWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var got []string
	w := NewPollWatcher(dir, func(path string) {
		mu.Lock()
		got = append(got, filepath.Base(path))
		mu.Unlock()
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	os.WriteFile(filepath.Join(dir, "x.proposal"), []byte("x"), 0644)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poll watcher never saw the file")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "x.proposal" {
		t.Errorf("got = %v", got)
	}
	// The same file is not handed over twice.
	if len(got) != 1 {
		t.Errorf("file seen %d times", len(got))
	}
}
