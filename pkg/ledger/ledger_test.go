package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMarkAndIsDone(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	key := "https://blog.example.com/2009/05/first-post.html"

	if l.IsDone(StageArchive, key) {
		t.Error("Fresh ledger should not report the key done")
	}

	if err := l.MarkDone(StageArchive, key); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	if !l.IsDone(StageArchive, key) {
		t.Error("Key should be done after MarkDone")
	}
	if l.IsDone(StageDiscover, key) {
		t.Error("Stages must not share keys")
	}
	if l.CountDone(StageArchive) != 1 {
		t.Errorf("Expected 1 done entry, got %d", l.CountDone(StageArchive))
	}
}

func TestReplayAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("https://blog.example.com/2009/05/post-%d.html", i)
		if err := l.MarkDone(StageArchive, key); err != nil {
			t.Fatalf("MarkDone failed: %v", err)
		}
	}
	if err := l.MarkDone(StageDiscover, "1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.CountDone(StageArchive) != 5 {
		t.Errorf("Expected 5 archive entries after replay, got %d", reopened.CountDone(StageArchive))
	}
	if !reopened.IsDone(StageArchive, "https://blog.example.com/2009/05/post-3.html") {
		t.Error("Replayed key should be done")
	}
	if !reopened.IsDone(StageDiscover, "1") {
		t.Error("Replayed discover key should be done")
	}
}

func TestReplayToleratesDuplicateLines(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "archive.log")

	content := "https://a/x.html\nhttps://a/y.html\nhttps://a/x.html\n"
	if err := os.WriteFile(log, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to seed log: %v", err)
	}

	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	if l.CountDone(StageArchive) != 2 {
		t.Errorf("Duplicates should collapse, got %d entries", l.CountDone(StageArchive))
	}
}

func TestReplayDiscardsTornFinalLine(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "archive.log")

	// The final line has no newline, as after a crash mid-append
	content := "https://a/x.html\nhttps://a/y.ht"
	if err := os.WriteFile(log, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to seed log: %v", err)
	}

	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	if l.CountDone(StageArchive) != 1 {
		t.Errorf("Torn line should be discarded, got %d entries", l.CountDone(StageArchive))
	}
	if l.IsDone(StageArchive, "https://a/y.ht") {
		t.Error("Torn key must not be reported done")
	}
	if !l.IsDone(StageArchive, "https://a/x.html") {
		t.Error("Intact key should survive a torn tail")
	}

	// The interrupted item can be completed again
	if err := l.MarkDone(StageArchive, "https://a/y.html"); err != nil {
		t.Fatalf("MarkDone after torn replay failed: %v", err)
	}
}

func TestMarkDoneIdempotent(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	key := "https://blog.example.com/style.css"
	for i := 0; i < 3; i++ {
		if err := l.MarkDone(StageArchive, key); err != nil {
			t.Fatalf("MarkDone failed: %v", err)
		}
	}
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "archive.log"))
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if string(data) != key+"\n" {
		t.Errorf("Repeated MarkDone should append once, log holds: %q", string(data))
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	if err := l.MarkDone(StageArchive, ""); err == nil {
		t.Error("Empty key should be rejected")
	}
	if err := l.MarkDone(StageArchive, "broken\nkey"); err == nil {
		t.Error("Key with newline should be rejected")
	}
	if err := l.MarkDone("No Spaces Allowed", "key"); err == nil {
		t.Error("Invalid stage name should be rejected")
	}
}

func TestVerifyArtifact(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	artifact := filepath.Join(dir, "2009_05_0001_first-post.html")
	key := "https://blog.example.com/2009/05/first-post.html"

	if err := os.WriteFile(artifact, []byte("<html></html>"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	if err := l.MarkDone(StageArchive, key); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	if !l.VerifyArtifact(StageArchive, key, artifact) {
		t.Error("Existing artifact should verify")
	}

	// Ledger and filesystem now disagree
	os.Remove(artifact)

	if l.VerifyArtifact(StageArchive, key, artifact) {
		t.Error("Missing artifact must not verify")
	}
	if l.IsDone(StageArchive, key) {
		t.Error("Key should be invalidated after failed verification")
	}

	// Re-completion appends a duplicate line, which replay tolerates
	if err := os.WriteFile(artifact, []byte("<html></html>"), 0644); err != nil {
		t.Fatalf("Failed to rewrite artifact: %v", err)
	}
	if err := l.MarkDone(StageArchive, key); err != nil {
		t.Fatalf("Re-marking failed: %v", err)
	}
	l.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()
	if !reopened.IsDone(StageArchive, key) {
		t.Error("Re-marked key should replay as done")
	}
}

func TestConcurrentMarkDone(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("https://blog.example.com/asset-%d-%d.png", w, i)
				if err := l.MarkDone(StageArchive, key); err != nil {
					t.Errorf("MarkDone failed: %v", err)
				}
				// Every worker also marks a contended shared key
				if err := l.MarkDone(StageArchive, "https://blog.example.com/shared.css"); err != nil {
					t.Errorf("MarkDone shared failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()
	l.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	want := workers*perWorker + 1
	if got := reopened.CountDone(StageArchive); got != want {
		t.Errorf("Expected %d entries after concurrent marks, got %d", want, got)
	}
}
