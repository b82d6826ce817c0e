package xhs

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
)

const (
	// BaseURL is the fixed API host
	BaseURL = "https://edith.xiaohongshu.com"

	// WebOrigin is the browser origin the API expects in Origin/Referer
	WebOrigin = "https://www.xiaohongshu.com"

	// DefaultUserAgent mirrors a current desktop Chrome
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// API paths
const (
	FeedEndpoint          = "/api/sns/web/v1/feed"
	UserPostedEndpoint    = "/api/sns/web/v1/user_posted"
	CommentPageEndpoint   = "/api/sns/web/v2/comment/page"
	SubCommentEndpoint    = "/api/sns/web/v2/comment/sub/page"
	SearchNotesEndpoint   = "/api/sns/web/v1/search/notes"
	UserOtherInfoEndpoint = "/api/sns/web/v1/user/otherinfo"
	UserSelfInfoEndpoint  = "/api/sns/web/v1/user/selfinfo"
	QRCodeCreateEndpoint  = "/api/sns/web/v1/login/qrcode/create"
	QRCodeStatusEndpoint  = "/api/sns/web/v1/login/qrcode/status"
)

const (
	// DefaultPageSize is the page size the web app requests for note lists
	DefaultPageSize = 30

	// MaxSearchPageSize is the largest page the search endpoint accepts
	MaxSearchPageSize = 20
)

// NormalizePath rejects empty paths and ensures a single leading slash.
// It is idempotent.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", xerrors.InvalidConfig("path must be non-empty")
	}
	if strings.HasPrefix(path, "/") {
		return path, nil
	}
	return "/" + path, nil
}

// EncodeParams renders query parameters in key order. Nil values are
// dropped; everything else is formatted with fmt.
func EncodeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return values.Encode()
}

var noteIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// IsValidNoteID checks the 24 hex digit shape used for note and user IDs
func IsValidNoteID(id string) bool {
	return noteIDPattern.MatchString(id)
}

// GetNoteURL returns the public web link for a note
func GetNoteURL(noteID, xsecToken string) string {
	if noteID == "" {
		return ""
	}
	u := fmt.Sprintf("%s/explore/%s", WebOrigin, noteID)
	if xsecToken != "" {
		u += "?xsec_token=" + url.QueryEscape(xsecToken)
	}
	return u
}

// GetUserProfileURL returns the public web link for a user
func GetUserProfileURL(userID string) string {
	if userID == "" {
		return ""
	}
	return fmt.Sprintf("%s/user/profile/%s", WebOrigin, userID)
}

var shareLinkPattern = regexp.MustCompile(`/(?:explore|discovery/item)/([0-9a-f]{24})`)

// ParseNoteLink extracts the note ID and xsec_token from a note URL. A bare
// ID is returned unchanged.
func ParseNoteLink(link string) (noteID, xsecToken string, err error) {
	link = strings.TrimSpace(link)
	if IsValidNoteID(link) {
		return link, "", nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", "", xerrors.InvalidConfig("invalid note link: %v", err)
	}
	m := shareLinkPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", xerrors.InvalidConfig("no note ID in %q", link)
	}
	return m[1], u.Query().Get("xsec_token"), nil
}
