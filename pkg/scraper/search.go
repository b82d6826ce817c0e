package scraper

import (
	"context"
	"math/big"
	"math/rand"
	"net/http"
	"strings"
	"time"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// SortOrder is the search ranking
type SortOrder string

const (
	SortGeneral    SortOrder = "general"
	SortTimeDesc   SortOrder = "time_descending"
	SortPopularity SortOrder = "popularity_descending"
)

// NoteType filters search results by media kind
type NoteType int

const (
	NoteTypeAll   NoteType = 0
	NoteTypeVideo NoteType = 1
	NoteTypeImage NoteType = 2
)

// ParseSortOrder accepts GENERAL, TIME_DESC or POPULARITY in any case
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "GENERAL":
		return SortGeneral, nil
	case "TIME_DESC", "TIME":
		return SortTimeDesc, nil
	case "POPULARITY", "HOT":
		return SortPopularity, nil
	}
	return "", xerrors.Usage("unknown sort order %q", s)
}

// ParseNoteType accepts ALL, VIDEO or IMAGE in any case
func ParseNoteType(s string) (NoteType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL":
		return NoteTypeAll, nil
	case "VIDEO":
		return NoteTypeVideo, nil
	case "IMAGE":
		return NoteTypeImage, nil
	}
	return 0, xerrors.Usage("unknown note type %q", s)
}

// SearchOptions describes a keyword search
type SearchOptions struct {
	Keyword  string
	Page     int
	PageSize int
	Sort     SortOrder
	NoteType NoteType
}

func (o SearchOptions) normalized() (SearchOptions, error) {
	o.Keyword = strings.TrimSpace(o.Keyword)
	if o.Keyword == "" {
		return o, xerrors.InvalidConfig("search keyword must be non-empty")
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.PageSize <= 0 || o.PageSize > xhs.MaxSearchPageSize {
		o.PageSize = xhs.MaxSearchPageSize
	}
	if o.Sort == "" {
		o.Sort = SortGeneral
	}
	return o, nil
}

// NewSearchID builds a search session identifier: the millisecond clock
// shifted left 64 bits plus a random 32-bit value, in base 36.
func NewSearchID() string {
	id := new(big.Int).Lsh(big.NewInt(time.Now().UnixMilli()), 64)
	id.Add(id, big.NewInt(int64(rand.Uint32())))
	return id.Text(36)
}

// SearchScraper runs page-numbered note searches
type SearchScraper struct {
	client APIClient
	logger logger.Logger
}

// NewSearchScraper creates a search scraper over client
func NewSearchScraper(client APIClient, log logger.Logger) *SearchScraper {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SearchScraper{client: client, logger: log.WithField("scraper", "search")}
}

// SearchNotes fetches the single page opts.Page. Each call carries a
// fresh search id.
func (s *SearchScraper) SearchNotes(ctx context.Context, opts SearchOptions) (Page[xhs.Note], error) {
	opts, err := opts.normalized()
	if err != nil {
		return Page[xhs.Note]{}, err
	}

	payload := map[string]any{
		"keyword":   opts.Keyword,
		"page":      opts.Page,
		"page_size": opts.PageSize,
		"search_id": NewSearchID(),
		"sort":      string(opts.Sort),
		"note_type": int(opts.NoteType),
	}

	resp, err := s.client.Do(ctx, xhs.Request{Method: http.MethodPost, Path: xhs.SearchNotesEndpoint, Payload: payload})
	if err != nil {
		return Page[xhs.Note]{}, err
	}

	data := envelope(resp)
	return Page[xhs.Note]{
		Items:   decodeItems[xhs.Note](list(data, "items", "notes"), noteCard, s.logger),
		Cursor:  cursorOf(data),
		HasMore: hasMore(data),
	}, nil
}

// SearchAll walks pages from opts.Page until an empty page, a page
// reporting no more results, or maxPages pages.
func (s *SearchScraper) SearchAll(ctx context.Context, opts SearchOptions, maxPages int) (Page[xhs.Note], error) {
	opts, err := opts.normalized()
	if err != nil {
		return Page[xhs.Note]{}, err
	}
	first := opts.Page

	return CollectPages(ctx, maxPages, func(ctx context.Context, n int) (Page[xhs.Note], error) {
		o := opts
		o.Page = first + n - 1
		return s.SearchNotes(ctx, o)
	}, s.logger, "search")
}
