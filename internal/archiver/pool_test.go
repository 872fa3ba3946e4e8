package archiver

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
	"typeporter/pkg/models"
	"typeporter/pkg/storage"
)

func TestWorkerPoolDeliversOneResultPerJob(t *testing.T) {
	fetcher := newStubFetcher()
	ta := newTestArchiver(t, fetcher, t.TempDir())

	// Pre-record every document so jobs complete without any fetching
	var docs []models.Document
	for i := 1; i <= 8; i++ {
		url := fmt.Sprintf("%s2010/03/post-%d.html", testSite, i)
		doc := models.Document{
			Slug:  fmt.Sprintf("post-%d", i),
			URL:   url,
			Index: i,
			Year:  "2010",
			Month: "03",
		}
		fileBase := storage.DocumentFileBase(doc.Year, doc.Month, doc.Index, doc.Slug)
		if err := storage.WriteFileAtomic(ta.archive.DocumentPath(fileBase), []byte("<html></html>")); err != nil {
			t.Fatalf("Failed to seed document: %v", err)
		}
		if err := ta.ledger.MarkDone(ledger.StageArchive, url); err != nil {
			t.Fatalf("Failed to mark document done: %v", err)
		}
		docs = append(docs, doc)
	}

	pool := NewWorkerPool(context.Background(), 3, ta.archiver, logger.NewTestLogger())
	pool.Start()

	var results []FetchResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			results = append(results, result)
		}
	}()

	for _, doc := range docs {
		if err := pool.Submit(FetchJob{Doc: doc}); err != nil {
			t.Errorf("Failed to submit job: %v", err)
		}
	}
	pool.Stop()
	wg.Wait()

	if len(results) != len(docs) {
		t.Errorf("Expected %d results, got %d", len(docs), len(results))
	}
	for _, result := range results {
		if !result.Skipped {
			t.Errorf("Expected %s to be skipped", result.Job.Doc.URL)
		}
		if result.Error != nil {
			t.Errorf("Unexpected error for %s: %v", result.Job.Doc.URL, result.Error)
		}
	}

	if got := fetcher.totalCalls(); got != 0 {
		t.Errorf("Expected no fetches for completed documents, got %d", got)
	}
}

func TestWorkerPoolStopAfterCancel(t *testing.T) {
	fetcher := newStubFetcher()
	ta := newTestArchiver(t, fetcher, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 2, ta.archiver, logger.NewTestLogger())
	pool.Start()
	cancel()
	pool.Stop()

	if _, open := <-pool.Results(); open {
		t.Error("Expected result channel to be closed after Stop")
	}
}

func TestWorkerPoolMinimumOneWorker(t *testing.T) {
	fetcher := newStubFetcher()
	ta := newTestArchiver(t, fetcher, t.TempDir())

	pool := NewWorkerPool(context.Background(), 0, ta.archiver, logger.NewTestLogger())
	if pool.numWorkers != 1 {
		t.Errorf("Expected worker count clamped to 1, got %d", pool.numWorkers)
	}
	pool.Start()
	pool.Stop()
}
