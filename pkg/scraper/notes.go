package scraper

import (
	"context"
	"net/http"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// imageFormats is the format list the web app advertises
var imageFormats = []string{"jpg", "webp", "avif"}

// NoteScraper fetches single notes and a user's posted notes
type NoteScraper struct {
	client APIClient
	logger logger.Logger
}

// NewNoteScraper creates a note scraper over client
func NewNoteScraper(client APIClient, log logger.Logger) *NoteScraper {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &NoteScraper{client: client, logger: log.WithField("scraper", "notes")}
}

// GetNote fetches one note through the feed endpoint. A note the server
// does not return yields an empty Note rather than an error.
func (s *NoteScraper) GetNote(ctx context.Context, noteID, xsecToken string) (*xhs.Note, error) {
	if noteID == "" {
		return nil, xerrors.InvalidConfig("note id must be non-empty")
	}

	payload := map[string]any{
		"source_note_id": noteID,
		"image_formats":  imageFormats,
		"extra":          map[string]any{"need_body_topic": "1"},
		"xsec_source":    "pc_feed",
		"xsec_token":     xsecToken,
	}

	resp, err := s.client.Do(ctx, xhs.Request{Method: http.MethodPost, Path: xhs.FeedEndpoint, Payload: payload})
	if err != nil {
		return nil, err
	}

	notes := decodeItems[xhs.Note](list(envelope(resp), "items"), noteCard, s.logger)
	if len(notes) == 0 {
		s.logger.WithField("note_id", noteID).Warn("Feed returned no note")
		return &xhs.Note{}, nil
	}

	note := notes[0]
	if note.NoteID == "" {
		note.NoteID = noteID
	}
	if note.XsecToken == "" {
		note.XsecToken = xsecToken
	}
	return &note, nil
}

// UserNotesPage fetches a single page of a user's posted notes
func (s *NoteScraper) UserNotesPage(ctx context.Context, userID, cursor string) (Page[xhs.Note], error) {
	params := map[string]any{
		"num":           xhs.DefaultPageSize,
		"cursor":        cursor,
		"user_id":       userID,
		"image_formats": "jpg,webp,avif",
	}

	resp, err := s.client.Do(ctx, xhs.Request{Method: http.MethodGet, Path: xhs.UserPostedEndpoint, Params: params})
	if err != nil {
		return Page[xhs.Note]{}, err
	}

	data := envelope(resp)
	return Page[xhs.Note]{
		Items:   decodeItems[xhs.Note](list(data, "notes", "items"), noteCard, s.logger),
		Cursor:  cursorOf(data),
		HasMore: hasMore(data),
	}, nil
}

// GetUserNotes follows a user's note list from cursor for at most maxPages
// pages. Notes repeated across pages are dropped.
func (s *NoteScraper) GetUserNotes(ctx context.Context, userID, cursor string, maxPages int) (Page[xhs.Note], error) {
	if userID == "" {
		return Page[xhs.Note]{}, xerrors.InvalidConfig("user id must be non-empty")
	}

	return CollectCursor(ctx, cursor, maxPages,
		func(ctx context.Context, c string) (Page[xhs.Note], error) {
			return s.UserNotesPage(ctx, userID, c)
		},
		DedupBy(noteKey),
		WithPageLogger[xhs.Note](s.logger, "user_notes"),
	)
}
