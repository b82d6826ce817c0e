package xhs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"42", 42},
		{"10+", 10},
		{"1.2万", 12000},
		{"3亿", 300000000},
		{"2.5w", 25000},
		{"1k", 1000},
		{"lots", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.in))
		})
	}
}

func TestNoteFromNoteCard(t *testing.T) {
	raw := `{
		"note_id": "65a1b2c3d4e5f60718293a4b",
		"display_title": "Weekend hike",
		"desc": "trail notes",
		"type": "normal",
		"user": {"user_id": "u1", "nickname": "walker", "avatar": "https://img/a.jpg"},
		"image_list": [{"url_default": "https://img/1.jpg"}, {"url": "https://img/2.webp"}, {}],
		"interact_info": {"liked_count": "1.5万", "comment_count": "12", "share_count": 3, "collected_count": "7"},
		"unknown_field": {"ignored": true}
	}`

	var n Note
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", n.NoteID)
	assert.Equal(t, "Weekend hike", n.Title)
	assert.Equal(t, "trail notes", n.Desc)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.webp"}, n.Images)
	require.NotNil(t, n.User)
	assert.Equal(t, "walker", n.User.Nickname)
	require.NotNil(t, n.LikedCount)
	assert.Equal(t, Count(15000), *n.LikedCount)
	assert.Equal(t, Count(12), *n.CommentedCount)
	assert.Equal(t, Count(3), *n.SharedCount)
	assert.Equal(t, Count(7), *n.CollectedCount)
	assert.Empty(t, n.Video)
}

func TestNoteFlatFieldsWin(t *testing.T) {
	raw := `{"note_id":"n1","title":"t","images":["a","b"],"video":"https://v/1.mp4","liked_count":5,"interact_info":{"liked_count":"99"}}`

	var n Note
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, []string{"a", "b"}, n.Images)
	assert.Equal(t, "https://v/1.mp4", n.Video)
	assert.Equal(t, Count(5), *n.LikedCount)
	assert.Equal(t, []string{"a", "b", "https://v/1.mp4"}, n.MediaURLs())
}

func TestNoteNestedVideo(t *testing.T) {
	raw := `{"id":"n2","type":"video","video":{"media":{"stream":{"h264":[{"master_url":"https://v/master.mp4"}]}}},"cover":{"url_default":"https://img/cover.jpg"}}`

	var n Note
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, "n2", n.NoteID)
	assert.Equal(t, "https://v/master.mp4", n.Video)
	assert.Equal(t, []string{"https://img/cover.jpg"}, n.Images)
}

func TestNoteMissingFields(t *testing.T) {
	var n Note
	require.NoError(t, json.Unmarshal([]byte(`{}`), &n))
	assert.Empty(t, n.NoteID)
	assert.Nil(t, n.LikedCount)
	assert.Nil(t, n.User)
}

func TestMalformedNoteIsAnError(t *testing.T) {
	var n Note
	assert.Error(t, json.Unmarshal([]byte(`{"note_id": 12345}`), &n))
	assert.Error(t, json.Unmarshal([]byte(`"just a string"`), &n))
}

func TestCommentAliases(t *testing.T) {
	raw := `{
		"id": "c1",
		"content": "nice",
		"create_time": 1700000000000,
		"like_count": "2",
		"user_info": {"user_id": "u9", "nickname": "fan", "image": "https://img/u9.jpg"},
		"sub_comments": [{"id": "c2", "content": "agreed", "user_info": {"user_id": "u1"}}]
	}`

	var c Comment
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, "c1", c.CommentID)
	assert.Equal(t, int64(1700000000000), c.CreateTime)
	assert.Equal(t, Count(2), *c.LikeCount)
	require.NotNil(t, c.User)
	assert.Equal(t, "https://img/u9.jpg", c.User.Avatar)
	require.Len(t, c.SubComments, 1)
	assert.Equal(t, "c2", c.SubComments[0].CommentID)
	assert.Equal(t, "u1", c.SubComments[0].User.UserID)
}

func TestUserAliases(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":"u1","nick_name":"n","desc":"bio text","fans":"1.1万","follows":7}`), &u))
	assert.Equal(t, "n", u.Nickname)
	assert.Equal(t, "bio text", u.Bio)
	assert.Equal(t, Count(11000), *u.Followers)
	assert.Equal(t, Count(7), *u.Following)
}

func TestDecode(t *testing.T) {
	src := map[string]any{"user_id": "u1", "nickname": "n", "extra": []any{1, 2}}
	var u User
	require.NoError(t, Decode(src, &u))
	assert.Equal(t, "u1", u.UserID)

	// Round trip through JSON keeps the typed shape.
	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"u1","nickname":"n"}`, string(out))
}
