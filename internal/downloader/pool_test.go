package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ratelimit"
)

// MockFetcher serves fixed bytes, optionally failing for some URLs
type MockFetcher struct {
	delay       time.Duration
	failURLs    map[string]bool
	contentType string
	calls       int32
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if m.failURLs[url] {
		return nil, "", errors.New("status 404")
	}
	return io.NopCloser(strings.NewReader("media:" + url)), m.contentType, nil
}

func (m *MockFetcher) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// MockStorage keeps saved files in memory
type MockStorage struct {
	files map[string][]byte
	mu    sync.Mutex
}

func NewMockStorage() *MockStorage {
	return &MockStorage{files: make(map[string][]byte)}
}

func (m *MockStorage) IsDownloaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

func (m *MockStorage) Path(name string) string { return "/mem/" + name }

func (m *MockStorage) Save(r io.Reader, name string) (string, int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", n, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = buf.Bytes()
	return m.Path(name), n, nil
}

func (m *MockStorage) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func makeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		i := i
		jobs[i] = Job{
			URL: fmt.Sprintf("https://cdn.example.com/%d", i),
			Name: func(ct string) string {
				ext := "bin"
				if ct == "image/png" {
					ext = "png"
				}
				return fmt.Sprintf("n_%d.%s", i, ext)
			},
		}
	}
	return jobs
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	fetcher := &MockFetcher{delay: 5 * time.Millisecond, contentType: "image/png"}
	store := NewMockStorage()
	limiter, err := ratelimit.NewTokenBucket(1000, 1000)
	if err != nil {
		t.Fatal(err)
	}

	pool := NewWorkerPool(3, fetcher, store, limiter, logger.NewNopLogger())
	results, err := pool.Run(context.Background(), makeJobs(10))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Error != nil {
			t.Errorf("Job %d failed: %v", i, r.Error)
		}
		if r.Job.Index != i {
			t.Errorf("Result %d carries index %d", i, r.Job.Index)
		}
		if want := fmt.Sprintf("/mem/n_%d.png", i); r.Path != want {
			t.Errorf("Expected path %s, got %s", want, r.Path)
		}
	}
	if fetcher.Calls() != 10 {
		t.Errorf("Expected 10 fetches, got %d", fetcher.Calls())
	}
	if store.Count() != 10 {
		t.Errorf("Expected 10 saved files, got %d", store.Count())
	}
}

func TestWorkerPoolWithErrors(t *testing.T) {
	jobs := makeJobs(4)
	fetcher := &MockFetcher{failURLs: map[string]bool{jobs[1].URL: true, jobs[3].URL: true}}
	store := NewMockStorage()

	results, err := NewWorkerPool(2, fetcher, store, nil, logger.NewNopLogger()).Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Per-job failures must not fail the run: %v", err)
	}

	for i, r := range results {
		failed := i == 1 || i == 3
		if failed && r.Error == nil {
			t.Errorf("Expected error for job %d", i)
		}
		if !failed && r.Error != nil {
			t.Errorf("Unexpected error for job %d: %v", i, r.Error)
		}
	}
	if store.Count() != 2 {
		t.Errorf("Expected 2 saved files, got %d", store.Count())
	}
}

func TestWorkerPoolOnResult(t *testing.T) {
	jobs := makeJobs(5)
	fetcher := &MockFetcher{failURLs: map[string]bool{jobs[2].URL: true}}
	pool := NewWorkerPool(3, fetcher, NewMockStorage(), nil, logger.NewNopLogger())

	seen := map[int]bool{}
	failures := 0
	pool.OnResult(func(r Result) {
		if seen[r.Job.Index] {
			t.Errorf("Job %d reported twice", r.Job.Index)
		}
		seen[r.Job.Index] = true
		if r.Error != nil {
			failures++
		}
	})

	if _, err := pool.Run(context.Background(), jobs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(seen) != 5 {
		t.Errorf("Expected 5 callbacks, got %d", len(seen))
	}
	if failures != 1 {
		t.Errorf("Expected 1 failure, got %d", failures)
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	fetcher := &MockFetcher{delay: 100 * time.Millisecond}
	pool := NewWorkerPool(5, fetcher, NewMockStorage(), nil, logger.NewNopLogger())

	start := time.Now()
	results, err := pool.Run(context.Background(), makeJobs(10))
	if err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	// 10 jobs of 100ms on 5 workers take about 200ms
	if elapsed > 400*time.Millisecond {
		t.Errorf("Downloads took too long: %v", elapsed)
	}
	if len(results) != 10 {
		t.Errorf("Expected 10 results, got %d", len(results))
	}
}

func TestWorkerPoolDuplicateDetection(t *testing.T) {
	fetcher := &MockFetcher{}
	store := NewMockStorage()
	store.files["n_1.bin"] = []byte("old")
	store.files["n_3.bin"] = []byte("old")

	results, err := NewWorkerPool(2, fetcher, store, nil, logger.NewNopLogger()).Run(context.Background(), makeJobs(4))
	if err != nil {
		t.Fatal(err)
	}

	if fetcher.Calls() != 2 {
		t.Errorf("Expected 2 fetches, got %d", fetcher.Calls())
	}
	if !results[1].Skipped || !results[3].Skipped {
		t.Error("Existing files should be reported as skipped")
	}
	if results[1].Path != "/mem/n_1.bin" {
		t.Errorf("Skipped result should carry the existing path, got %s", results[1].Path)
	}
	if string(store.files["n_1.bin"]) != "old" {
		t.Error("Existing file was overwritten")
	}
}

func TestWorkerPoolChecksExistingNames(t *testing.T) {
	fetcher := &MockFetcher{contentType: "image/png"}
	store := NewMockStorage()
	store.files["n_0.png"] = []byte("old")

	jobs := makeJobs(2)
	for i := range jobs {
		jobs[i].Existing = []string{fmt.Sprintf("n_%d.bin", i), fmt.Sprintf("n_%d.png", i)}
	}

	results, err := NewWorkerPool(1, fetcher, store, nil, logger.NewNopLogger()).Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}

	if fetcher.Calls() != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetcher.Calls())
	}
	if !results[0].Skipped || results[0].Path != "/mem/n_0.png" {
		t.Errorf("Expected n_0.png to be reused, got %+v", results[0])
	}
	if results[1].Skipped || results[1].Path != "/mem/n_1.png" {
		t.Errorf("Expected n_1.png to be fetched, got %+v", results[1])
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	fetcher := &MockFetcher{delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, err := NewWorkerPool(2, fetcher, NewMockStorage(), nil, logger.NewNopLogger()).Run(ctx, makeJobs(6))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Run did not stop promptly after cancellation")
	}
	for i, r := range results {
		if r.Error == nil {
			t.Errorf("Job %d should report an error after cancellation", i)
		}
	}
}

func TestWorkerPoolEmpty(t *testing.T) {
	results, err := NewWorkerPool(3, &MockFetcher{}, NewMockStorage(), nil, logger.NewNopLogger()).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
