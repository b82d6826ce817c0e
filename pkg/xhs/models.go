package xhs

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Count is an engagement counter. The API sends these as numbers or as
// display strings such as "1.2万" or "10+"; both decode to an integer.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	*c = Count(ParseCount(s))
	return nil
}

// ParseCount converts a display count to an integer; unparseable input is 0
func ParseCount(s string) int64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "+")
	if s == "" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		mult, s = 1e4, strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "亿"):
		mult, s = 1e8, strings.TrimSuffix(s, "亿")
	case strings.HasSuffix(s, "w"), strings.HasSuffix(s, "W"):
		mult, s = 1e4, s[:len(s)-1]
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1e3, s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f*mult + 0.5)
}

// User is a public profile. Absent fields stay at their zero value.
type User struct {
	UserID    string `json:"user_id,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Followers *Count `json:"followers,omitempty"`
	Following *Count `json:"following,omitempty"`
}

func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var aux struct {
		plain
		NickName string `json:"nick_name"`
		Image    string `json:"image"`
		Images   string `json:"images"`
		Desc     string `json:"desc"`
		Fans     *Count `json:"fans"`
		Follows  *Count `json:"follows"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.Nickname == "" {
		u.Nickname = aux.NickName
	}
	if u.Avatar == "" {
		u.Avatar = firstNonEmpty(aux.Image, aux.Images)
	}
	if u.Bio == "" {
		u.Bio = aux.Desc
	}
	if u.Followers == nil {
		u.Followers = aux.Fans
	}
	if u.Following == nil {
		u.Following = aux.Follows
	}
	return nil
}

// Comment is a top-level comment or a reply
type Comment struct {
	CommentID   string    `json:"comment_id,omitempty"`
	Content     string    `json:"content,omitempty"`
	User        *User     `json:"user,omitempty"`
	CreateTime  int64     `json:"create_time,omitempty"`
	LikeCount   *Count    `json:"like_count,omitempty"`
	SubComments []Comment `json:"sub_comments,omitempty"`
}

func (c *Comment) UnmarshalJSON(b []byte) error {
	type plain Comment
	var aux struct {
		plain
		ID       string `json:"id"`
		UserInfo *User  `json:"user_info"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Comment(aux.plain)
	if c.CommentID == "" {
		c.CommentID = aux.ID
	}
	if c.User == nil {
		c.User = aux.UserInfo
	}
	return nil
}

// Note is a post. Images and Video hold media URLs.
type Note struct {
	NoteID         string         `json:"note_id,omitempty"`
	Title          string         `json:"title,omitempty"`
	Desc           string         `json:"desc,omitempty"`
	Type           string         `json:"type,omitempty"`
	XsecToken      string         `json:"xsec_token,omitempty"`
	Images         []string       `json:"images,omitempty"`
	Video          string         `json:"video,omitempty"`
	User           *User          `json:"user,omitempty"`
	Stats          map[string]any `json:"stats,omitempty"`
	LikedCount     *Count         `json:"liked_count,omitempty"`
	CommentedCount *Count         `json:"commented_count,omitempty"`
	SharedCount    *Count         `json:"shared_count,omitempty"`
	CollectedCount *Count         `json:"collected_count,omitempty"`
}

type imageInfo struct {
	URL        string `json:"url"`
	URLDefault string `json:"url_default"`
}

type interactInfo struct {
	LikedCount     *Count `json:"liked_count"`
	CommentCount   *Count `json:"comment_count"`
	ShareCount     *Count `json:"share_count"`
	CollectedCount *Count `json:"collected_count"`
}

// UnmarshalJSON accepts the note_card shape returned by the feed, search
// and user_posted endpoints: image_list, interact_info and a nested
// video.media.stream map fill the flat fields when they are absent.
func (n *Note) UnmarshalJSON(b []byte) error {
	type plain Note
	var aux struct {
		plain
		ID           string          `json:"id"`
		DisplayTitle string          `json:"display_title"`
		ImageList    []imageInfo     `json:"image_list"`
		Cover        *imageInfo      `json:"cover"`
		InteractInfo *interactInfo   `json:"interact_info"`
		RawVideo     json.RawMessage `json:"video"` // shadows plain.Video
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*n = Note(aux.plain)
	n.Video = decodeVideo(aux.RawVideo)

	if n.NoteID == "" {
		n.NoteID = aux.ID
	}
	if n.Title == "" {
		n.Title = aux.DisplayTitle
	}
	if len(n.Images) == 0 {
		for _, img := range aux.ImageList {
			if u := firstNonEmpty(img.URLDefault, img.URL); u != "" {
				n.Images = append(n.Images, u)
			}
		}
		if len(n.Images) == 0 && aux.Cover != nil {
			if u := firstNonEmpty(aux.Cover.URLDefault, aux.Cover.URL); u != "" {
				n.Images = []string{u}
			}
		}
	}
	if ii := aux.InteractInfo; ii != nil {
		if n.LikedCount == nil {
			n.LikedCount = ii.LikedCount
		}
		if n.CommentedCount == nil {
			n.CommentedCount = ii.CommentCount
		}
		if n.SharedCount == nil {
			n.SharedCount = ii.ShareCount
		}
		if n.CollectedCount == nil {
			n.CollectedCount = ii.CollectedCount
		}
	}
	return nil
}

// decodeVideo returns a playable URL from either a plain string or the
// nested media.stream.h264[0].master_url object.
func decodeVideo(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Media struct {
			Stream map[string][]struct {
				MasterURL string `json:"master_url"`
			} `json:"stream"`
		} `json:"media"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	for _, codec := range []string{"h264", "h265", "av1"} {
		for _, s := range obj.Media.Stream[codec] {
			if s.MasterURL != "" {
				return s.MasterURL
			}
		}
	}
	return ""
}

// MediaURLs returns every non-empty image URL plus the video URL, if any
func (n *Note) MediaURLs() []string {
	urls := make([]string, 0, len(n.Images)+1)
	for _, u := range n.Images {
		if u != "" {
			urls = append(urls, u)
		}
	}
	if n.Video != "" {
		urls = append(urls, n.Video)
	}
	return urls
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Decode converts a loosely typed JSON value from Do into a typed record.
// Unknown fields are discarded.
func Decode(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
