package scraper

import (
	"context"
	"net/http"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// CommentScraper fetches top-level comments and replies of a note
type CommentScraper struct {
	client APIClient
	logger logger.Logger
}

// NewCommentScraper creates a comment scraper over client
func NewCommentScraper(client APIClient, log logger.Logger) *CommentScraper {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &CommentScraper{client: client, logger: log.WithField("scraper", "comments")}
}

func (s *CommentScraper) fetch(ctx context.Context, path string, payload map[string]any) (Page[xhs.Comment], error) {
	resp, err := s.client.Do(ctx, xhs.Request{Method: http.MethodPost, Path: path, Payload: payload})
	if err != nil {
		return Page[xhs.Comment]{}, err
	}

	data := envelope(resp)
	return Page[xhs.Comment]{
		Items:   decodeItems[xhs.Comment](list(data, "comments", "items"), nil, s.logger),
		Cursor:  cursorOf(data),
		HasMore: hasMore(data),
	}, nil
}

// CommentsPage fetches one page of top-level comments
func (s *CommentScraper) CommentsPage(ctx context.Context, noteID, cursor string) (Page[xhs.Comment], error) {
	return s.fetch(ctx, xhs.CommentPageEndpoint, map[string]any{
		"note_id": noteID,
		"cursor":  cursor,
	})
}

// GetComments follows the comment cursor from cursor for at most maxPages
// pages.
func (s *CommentScraper) GetComments(ctx context.Context, noteID, cursor string, maxPages int) (Page[xhs.Comment], error) {
	if noteID == "" {
		return Page[xhs.Comment]{}, xerrors.InvalidConfig("note id must be non-empty")
	}

	return CollectCursor(ctx, cursor, maxPages,
		func(ctx context.Context, c string) (Page[xhs.Comment], error) {
			return s.CommentsPage(ctx, noteID, c)
		},
		DedupBy(commentKey),
		WithPageLogger[xhs.Comment](s.logger, "comments"),
	)
}

// GetSubComments fetches a single page of replies under rootCommentID.
// The returned Page keeps the server's cursor and has-more flag.
func (s *CommentScraper) GetSubComments(ctx context.Context, noteID, rootCommentID, cursor string) (Page[xhs.Comment], error) {
	if noteID == "" || rootCommentID == "" {
		return Page[xhs.Comment]{}, xerrors.InvalidConfig("note id and root comment id must be non-empty")
	}

	return s.fetch(ctx, xhs.SubCommentEndpoint, map[string]any{
		"note_id":         noteID,
		"root_comment_id": rootCommentID,
		"cursor":          cursor,
	})
}
