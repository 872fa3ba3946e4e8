package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	run := New("archive", "blog.example.com")
	run.Add("documents", 42)
	run.Add("assets fetched", 310)
	run.AddFailure("2009_04_0007_spring.html", "http://cdn.example.com/gone.jpg", "status 404")
	run.Finish()

	path := filepath.Join(t.TempDir(), Filename("archive"))
	if err := run.Save(path); err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}

	if loaded.Stage != "archive" {
		t.Errorf("Stage mismatch: got %q", loaded.Stage)
	}
	if loaded.Site != "blog.example.com" {
		t.Errorf("Site mismatch: got %q", loaded.Site)
	}
	if len(loaded.Counts) != 2 {
		t.Fatalf("Expected 2 counts, got %d", len(loaded.Counts))
	}
	if loaded.Counts[0].Name != "documents" || loaded.Counts[0].Value != 42 {
		t.Errorf("First count mismatch: %+v", loaded.Counts[0])
	}
	if loaded.Counts[1].Name != "assets fetched" {
		t.Error("Counts should keep insertion order")
	}
	if len(loaded.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(loaded.Failures))
	}
	if loaded.Failures[0].Ref != "http://cdn.example.com/gone.jpg" {
		t.Errorf("Failure ref mismatch: %q", loaded.Failures[0].Ref)
	}
	if loaded.Finished.Before(loaded.Started) {
		t.Error("Finished should not be before Started")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("export"); got != "export_report.json" {
		t.Errorf("Unexpected report filename: %q", got)
	}
}

func TestDurationBeforeFinish(t *testing.T) {
	run := New("consolidate", "")
	if run.Duration() < 0 {
		t.Error("Duration should never be negative")
	}

	run.Finish()
	d := run.Duration()
	if run.Duration() != d {
		t.Error("Duration should be stable after Finish")
	}
}

func TestSavedReportIsIndentedJSON(t *testing.T) {
	run := New("export", "blog.example.com")
	run.Add("posts", 3)
	run.Finish()

	path := filepath.Join(t.TempDir(), Filename("export"))
	if err := run.Save(path); err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"stage\": \"export\"") {
		t.Error("Report should be indented for hand inspection")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Expected error loading missing report")
	}
}
