// Package media downloads note images and videos to disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/internal/downloader"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ratelimit"
	"github.com/CNHLAIA/XHS-Scraper/pkg/storage"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

const (
	DefaultPattern     = "{index}.{ext}"
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second

	// Referer the CDN expects on media requests
	Referer = "https://www.xiaohongshu.com/"
)

// knownExts lists every extension a saved file can carry when its URL has
// none, fallback last.
var knownExts = []string{"jpg", "png", "webp", "gif", "avif", "heic", "mp4", "mov", "bin"}

var extPattern = regexp.MustCompile(`\.([A-Za-z0-9]+)$`)

var contentTypeExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/avif":      "avif",
	"image/heic":      "heic",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
}

// Options configures a Downloader
type Options struct {
	Concurrency int
	Timeout     time.Duration
	UserAgent   string
	// Limiter paces CDN requests; nil means unpaced
	Limiter ratelimit.Limiter
	Client  *http.Client
	Logger  logger.Logger
	// Progress is called after each URL finishes with the number finished
	// so far and whether this one failed
	Progress func(done, total int, failed bool)
}

// Downloader fetches media URLs into a directory
type Downloader struct {
	client      *http.Client
	concurrency int
	userAgent   string
	limiter     ratelimit.Limiter
	logger      logger.Logger
	progress    func(done, total int, failed bool)
}

// NewDownloader creates a Downloader, filling unset options with defaults
func NewDownloader(opts Options) *Downloader {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Downloader{
		client:      opts.Client,
		concurrency: opts.Concurrency,
		userAgent:   opts.UserAgent,
		limiter:     opts.Limiter,
		logger:      opts.Logger.WithField("component", "media"),
		progress:    opts.Progress,
	}
}

// Download saves urls into dir using a default Downloader
func Download(ctx context.Context, urls []string, dir, pattern, noteID string) ([]string, error) {
	return NewDownloader(Options{}).Download(ctx, urls, dir, pattern, noteID)
}

// Download saves each URL into dir, naming files by pattern. Files that
// already exist are not fetched again. Failed URLs are logged and left
// out of the result, which lists saved paths in input order. An error is
// returned only when dir cannot be created or ctx ends.
func (d *Downloader) Download(ctx context.Context, urls []string, dir, pattern, noteID string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if len(urls) == 0 {
		return nil, nil
	}

	store, err := storage.NewManager(dir)
	if err != nil {
		return nil, err
	}

	jobs := make([]downloader.Job, len(urls))
	for i, u := range urls {
		index, urlExt := i, ExtFromURL(u)
		jobs[i] = downloader.Job{
			URL: u,
			Name: func(contentType string) string {
				ext := urlExt
				if ext == "" {
					ext = ExtFromContentType(contentType)
				}
				return FileName(pattern, index, ext, noteID)
			},
		}
		if urlExt == "" {
			// the extension was taken from the Content-Type when saved
			for _, ext := range knownExts {
				jobs[i].Existing = append(jobs[i].Existing, FileName(pattern, index, ext, noteID))
			}
		}
	}

	pool := downloader.NewWorkerPool(d.concurrency, d, store, d.limiter, d.logger)
	if d.progress != nil {
		finished := 0
		pool.OnResult(func(r downloader.Result) {
			finished++
			d.progress(finished, len(jobs), r.Error != nil)
		})
	}
	results, runErr := pool.Run(ctx, jobs)

	var paths []string
	for _, r := range results {
		if r.Error != nil {
			if runErr == nil || !isContextErr(r.Error) {
				logger.LogDownload(d.logger, noteID, r.Job.URL, "", r.Error)
			}
			continue
		}
		logger.LogDownload(d.logger, noteID, r.Job.URL, r.Path, nil)
		paths = append(paths, r.Path)
	}

	d.logger.InfoWithFields("Media download finished", map[string]interface{}{
		"note_id": noteID,
		"saved":   len(paths),
		"failed":  len(urls) - len(paths),
	})
	return paths, runErr
}

// Fetch issues a GET for rawURL with the headers the CDN expects
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid media URL: %w", err)
	}
	req.Header.Set("Referer", Referer)
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", xerrors.FromStatus(resp.StatusCode, "media request failed: "+resp.Status, nil)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// FileName expands {index}, {ext} and {note_id} in pattern. An empty note
// id takes one adjacent underscore with it.
func FileName(pattern string, index int, ext, noteID string) string {
	if noteID == "" {
		pattern = strings.NewReplacer("_{note_id}", "", "{note_id}_", "").Replace(pattern)
	}
	return strings.NewReplacer(
		"{index}", strconv.Itoa(index),
		"{ext}", ext,
		"{note_id}", noteID,
	).Replace(pattern)
}

// ExtFromURL returns the lower-cased extension of the URL path, or "" when
// the path has none. jpeg is normalized to jpg.
func ExtFromURL(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	m := extPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	ext := strings.ToLower(m[1])
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext
}

// ExtFromContentType maps a media type to an extension, defaulting to bin
func ExtFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "bin"
	}
	if ext, ok := contentTypeExt[mediaType]; ok {
		return ext
	}
	return "bin"
}

// NoteURLs lists a note's image URLs followed by its video URL
func NoteURLs(n *xhs.Note) []string {
	if n == nil {
		return nil
	}
	return n.MediaURLs()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
