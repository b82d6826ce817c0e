package downloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ratelimit"
)

// Job is one URL to fetch. Name maps the response Content-Type to the
// file name to store. Before any request is made, the names in Existing
// are checked for a file saved by an earlier run; an empty Existing means
// Name(""). Run sets Index to the job's position.
type Job struct {
	Index    int
	URL      string
	Name     func(contentType string) string
	Existing []string
}

func (j Job) existingNames() []string {
	if len(j.Existing) > 0 {
		return j.Existing
	}
	return []string{j.Name("")}
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Path     string
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int64
}

// Fetcher opens a media URL. The caller closes the body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body io.ReadCloser, contentType string, err error)
}

// Storage persists fetched bodies
type Storage interface {
	IsDownloaded(name string) bool
	Path(name string) string
	Save(r io.Reader, name string) (string, int64, error)
}

// WorkerPool runs jobs on a fixed number of workers
type WorkerPool struct {
	numWorkers int
	fetcher    Fetcher
	storage    Storage
	limiter    ratelimit.Limiter
	logger     logger.Logger
	onResult   func(Result)
}

// NewWorkerPool creates a pool. limiter may be nil for unpaced fetching.
func NewWorkerPool(numWorkers int, fetcher Fetcher, storage Storage, limiter ratelimit.Limiter, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		fetcher:    fetcher,
		storage:    storage,
		limiter:    limiter,
		logger:     log,
	}
}

// OnResult registers fn to be called from Run's goroutine as each job
// finishes, in completion order.
func (wp *WorkerPool) OnResult(fn func(Result)) {
	wp.onResult = fn
}

// Run processes jobs and returns one Result per job, in job order. A job
// failure is reported in its Result and does not stop the others. The
// returned error is non-nil only when ctx ends before every job ran; the
// unrun jobs then carry ctx's error.
func (wp *WorkerPool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	done := make([]bool, len(jobs))
	for i, job := range jobs {
		results[i].Job = job
	}

	jobQueue := make(chan int, wp.numWorkers*2)
	resultQueue := make(chan Result, wp.numWorkers)

	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"jobs":        len(jobs),
	})

	var workers errgroup.Group
	for id := 0; id < wp.numWorkers; id++ {
		id := id
		workers.Go(func() error {
			wp.worker(ctx, id, jobs, jobQueue, resultQueue)
			return nil
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobQueue)
		for i := range jobs {
			select {
			case jobQueue <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		workers.Wait()
		close(resultQueue)
		return nil
	})

	for r := range resultQueue {
		results[r.Job.Index] = r
		done[r.Job.Index] = true
		if wp.onResult != nil {
			wp.onResult(r)
		}
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		for i := range results {
			if !done[i] {
				results[i].Error = err
			}
		}
	}

	wp.logger.Info("Worker pool stopped")
	return results, err
}

func (wp *WorkerPool) worker(ctx context.Context, id int, jobs []Job, jobQueue <-chan int, resultQueue chan<- Result) {
	wp.logger.DebugWithFields("Worker started", map[string]interface{}{"worker_id": id})

	for i := range jobQueue {
		if ctx.Err() != nil {
			return
		}
		job := jobs[i]
		job.Index = i
		result := wp.processJob(ctx, job, id)

		select {
		case resultQueue <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(ctx context.Context, job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	fields := map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
	}

	for _, name := range job.existingNames() {
		if wp.storage.IsDownloaded(name) {
			wp.logger.DebugWithFields("Media already downloaded", fields)
			result.Path = wp.storage.Path(name)
			result.Skipped = true
			result.Duration = time.Since(start)
			return result
		}
	}

	if wp.limiter != nil {
		if err := wp.limiter.Acquire(ctx, 1); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
	}

	body, contentType, err := wp.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	defer body.Close()

	path, n, err := wp.storage.Save(body, job.Name(contentType))
	result.Size = n
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Path = path
	result.Duration = time.Since(start)
	fields["size"] = n
	fields["duration"] = result.Duration
	wp.logger.DebugWithFields("Worker completed job", fields)
	return result
}
