package archiver

import (
	"context"
	"sync"
	"time"

	"typeporter/pkg/logger"
	"typeporter/pkg/models"
)

// FetchJob is one document to archive
type FetchJob struct {
	Doc models.Document
}

// FetchResult reports the outcome of archiving one document and all
// of its references
type FetchResult struct {
	Job FetchJob
	// Skipped is true when the ledger already records the document
	// and its file is still on disk
	Skipped bool
	// AssetsFetched counts references downloaded during this job,
	// including stylesheet children
	AssetsFetched int
	// AssetsReused counts references satisfied from a previous run
	// or another document's fetch
	AssetsReused int
	// Failures lists references that stayed absolute after retries
	// were exhausted
	Failures []FailedRef
	// Error is set when the document itself could not be archived;
	// the document stays pending for the next run
	Error    error
	Duration time.Duration
}

// FailedRef records one reference left pointing at its source URL
type FailedRef struct {
	Document string `json:"document"`
	URL      string `json:"url"`
	Reason   string `json:"reason"`
}

// WorkerPool fans documents out to a fixed set of workers. A worker
// archives one document at a time, including every asset it
// references, so a document file is never written before its
// references have settled.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan FetchJob
	resultQueue chan FetchResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	archiver    *Archiver
	logger      logger.Logger
}

// NewWorkerPool creates a worker pool with the specified number of workers
func NewWorkerPool(ctx context.Context, numWorkers int, a *Archiver, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan FetchJob, numWorkers*2),
		resultQueue: make(chan FetchResult, numWorkers),
		ctx:         poolCtx,
		cancel:      cancel,
		archiver:    a,
		logger:      log,
	}
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight documents to finish
// and then closes the result channel
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("Stopping worker pool")
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a document job to the queue
func (wp *WorkerPool) Submit(job FetchJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel delivering one result per submitted job
func (wp *WorkerPool) Results() <-chan FetchResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.archiver.processDocument(wp.ctx, id, job)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}

	wp.logger.DebugWithFields("Worker finished", map[string]interface{}{
		"worker_id": id,
	})
}
