package scraper

import (
	"context"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
)

// DefaultMaxPages bounds a crawl when the caller does not choose a limit
const DefaultMaxPages = 100

// Page is one page of a list endpoint, or the accumulation of several.
// An accumulated Page always reports HasMore=false and carries the last
// cursor the server returned, which can be used to resume.
type Page[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
}

// CursorFetcher fetches the page that starts at cursor
type CursorFetcher[T any] func(ctx context.Context, cursor string) (Page[T], error)

// PageFetcher fetches a 1-indexed page number
type PageFetcher[T any] func(ctx context.Context, page int) (Page[T], error)

// cursorOptions tunes CollectCursor
type cursorOptions[T any] struct {
	key    func(T) string
	logger logger.Logger
	name   string
}

// CursorOption configures CollectCursor
type CursorOption[T any] func(*cursorOptions[T])

// DedupBy drops items whose non-empty key was already collected
func DedupBy[T any](key func(T) string) CursorOption[T] {
	return func(o *cursorOptions[T]) { o.key = key }
}

// WithPageLogger reports each fetched page under name
func WithPageLogger[T any](l logger.Logger, name string) CursorOption[T] {
	return func(o *cursorOptions[T]) {
		o.logger = l
		o.name = name
	}
}

// CollectCursor follows cursors from start until the server reports no
// more data, returns an empty cursor, echoes the cursor it was given, or
// hands back a cursor already visited. At most maxPages pages are fetched.
// On error the items gathered so far are returned alongside it.
func CollectCursor[T any](ctx context.Context, start string, maxPages int, fetch CursorFetcher[T], opts ...CursorOption[T]) (Page[T], error) {
	o := cursorOptions[T]{logger: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if maxPages <= 0 {
		return Page[T]{}, xerrors.InvalidConfig("max pages must be positive, got %d", maxPages)
	}

	result := Page[T]{Items: []T{}, Cursor: start}
	seenCursors := map[string]struct{}{}
	seenKeys := map[string]struct{}{}
	current := start

	for pages := 0; pages < maxPages; pages++ {
		if _, seen := seenCursors[current]; seen {
			break
		}
		seenCursors[current] = struct{}{}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := fetch(ctx, current)
		if err != nil {
			return result, err
		}

		for _, item := range page.Items {
			if o.key != nil {
				if k := o.key(item); k != "" {
					if _, dup := seenKeys[k]; dup {
						continue
					}
					seenKeys[k] = struct{}{}
				}
			}
			result.Items = append(result.Items, item)
		}
		if page.Cursor != "" {
			result.Cursor = page.Cursor
		}
		logger.LogPage(o.logger, o.name, pages+1, len(page.Items), page.Cursor)

		if !page.HasMore || page.Cursor == "" || page.Cursor == current {
			break
		}
		current = page.Cursor
	}

	return result, nil
}

// CollectPages walks page numbers from 1 until an empty page, a page
// reporting no more data, or maxPages.
func CollectPages[T any](ctx context.Context, maxPages int, fetch PageFetcher[T], log logger.Logger, name string) (Page[T], error) {
	if maxPages <= 0 {
		return Page[T]{}, xerrors.InvalidConfig("max pages must be positive, got %d", maxPages)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	result := Page[T]{Items: []T{}}
	for n := 1; n <= maxPages; n++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := fetch(ctx, n)
		if err != nil {
			return result, err
		}
		logger.LogPage(log, name, n, len(page.Items), page.Cursor)

		if len(page.Items) == 0 {
			break
		}
		result.Items = append(result.Items, page.Items...)
		if page.Cursor != "" {
			result.Cursor = page.Cursor
		}
		if !page.HasMore {
			break
		}
	}

	return result, nil
}
