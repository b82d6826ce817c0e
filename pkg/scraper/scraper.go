package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/pkg/checkpoint"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// Scraper groups the endpoint scrapers over one client
type Scraper struct {
	Notes    *NoteScraper
	Comments *CommentScraper
	Search   *SearchScraper
	Users    *UserScraper

	logger logger.Logger
}

// New creates a Scraper. profileTTL <= 0 selects DefaultProfileTTL.
func New(client APIClient, profileTTL time.Duration, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Scraper{
		Notes:    NewNoteScraper(client, log),
		Comments: NewCommentScraper(client, log),
		Search:   NewSearchScraper(client, log),
		Users:    NewUserScraper(client, profileTTL, log),
		logger:   log,
	}
}

// CrawlOptions controls a resumable cursor crawl
type CrawlOptions struct {
	MaxPages      int
	Resume        bool
	ForceRestart  bool
	CheckpointDir string
}

// CrawlUserNotes collects a user's notes with checkpoint support
func (s *Scraper) CrawlUserNotes(ctx context.Context, userID string, opts CrawlOptions) (Page[xhs.Note], error) {
	return crawl(ctx, s.logger, "notes", userID, opts, func(ctx context.Context, cursor string) (Page[xhs.Note], error) {
		return s.Notes.GetUserNotes(ctx, userID, cursor, opts.MaxPages)
	})
}

// CrawlComments collects a note's comments with checkpoint support
func (s *Scraper) CrawlComments(ctx context.Context, noteID string, opts CrawlOptions) (Page[xhs.Comment], error) {
	return crawl(ctx, s.logger, "comments", noteID, opts, func(ctx context.Context, cursor string) (Page[xhs.Comment], error) {
		return s.Comments.GetComments(ctx, noteID, cursor, opts.MaxPages)
	})
}

// crawl wraps run with checkpoint handling. A failed run records the
// last cursor reached; a successful one removes the checkpoint.
func crawl[T any](ctx context.Context, log logger.Logger, operation, target string, opts CrawlOptions, run func(ctx context.Context, cursor string) (Page[T], error)) (Page[T], error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	mgr, err := checkpoint.NewManager(opts.CheckpointDir, operation, target)
	if err != nil {
		return Page[T]{}, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	var cp *checkpoint.Checkpoint
	switch {
	case opts.ForceRestart && mgr.Exists():
		if err := mgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
	case opts.Resume && mgr.Exists():
		cp, err = mgr.Load()
		if err != nil {
			return Page[T]{}, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	case mgr.Exists():
		return Page[T]{}, xerrors.Usage("checkpoint exists for %s %s - use --resume to continue or --force-restart to start fresh", operation, target)
	}

	if cp == nil {
		cp, err = mgr.Create(operation, target)
		if err != nil {
			return Page[T]{}, err
		}
	}

	log.InfoWithFields("Starting crawl", map[string]interface{}{
		"operation": operation,
		"target":    target,
		"cursor":    cp.Cursor,
		"max_pages": opts.MaxPages,
	})

	result, runErr := run(ctx, cp.Cursor)
	if runErr != nil {
		if err := mgr.UpdateProgress(cp, result.Cursor, 0, len(result.Items)); err != nil {
			log.WithError(err).Warn("Failed to update checkpoint progress")
		}
		return result, runErr
	}

	if err := mgr.Delete(); err != nil {
		log.WithError(err).Warn("Failed to delete checkpoint")
	}
	log.InfoWithFields("Crawl completed", map[string]interface{}{
		"operation": operation,
		"target":    target,
		"items":     len(result.Items),
	})
	return result, nil
}
