package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

func newCDN(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Header.Get("Referer") != Referer {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/missing.jpg":
			w.WriteHeader(http.StatusNotFound)
		case "/noext":
			w.Header().Set("Content-Type", "image/webp")
			w.Write([]byte("webp"))
		case "/unknown":
			w.Header().Set("Content-Type", "application/x-mystery")
			w.Write([]byte("???"))
		default:
			w.Write([]byte("body:" + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	srv := newCDN(t, nil)
	dir := filepath.Join(t.TempDir(), "media")
	tl := logger.NewTestLogger()

	urls := []string{
		srv.URL + "/a.JPEG?x=1",
		srv.URL + "/missing.jpg",
		srv.URL + "/noext",
		srv.URL + "/clip.mp4",
		srv.URL + "/unknown",
	}
	d := NewDownloader(Options{Concurrency: 2, Logger: tl})
	paths, err := d.Download(context.Background(), urls, dir, "{note_id}_{index}.{ext}", "n1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "n1_0.jpg"),
		filepath.Join(dir, "n1_2.webp"),
		filepath.Join(dir, "n1_3.mp4"),
		filepath.Join(dir, "n1_4.bin"),
	}, paths)

	data, err := os.ReadFile(filepath.Join(dir, "n1_3.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "body:/clip.mp4", string(data))

	assert.True(t, tl.HasMessage("Media download failed, skipping"))
	assert.NoFileExists(t, filepath.Join(dir, "n1_1.jpg"))
}

func TestDownloadSkipsExisting(t *testing.T) {
	var hits int32
	srv := newCDN(t, &hits)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.jpg"), []byte("kept"), 0644))

	d := NewDownloader(Options{Logger: logger.NewNopLogger()})
	paths, err := d.Download(context.Background(), []string{srv.URL + "/a.jpg", srv.URL + "/b.png"}, dir, "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "0.jpg"), filepath.Join(dir, "1.png")}, paths)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	data, _ := os.ReadFile(filepath.Join(dir, "0.jpg"))
	assert.Equal(t, "kept", string(data))
}

func TestDownloadSkipsExistingWithoutURLExtension(t *testing.T) {
	var hits int32
	srv := newCDN(t, &hits)
	dir := t.TempDir()
	d := NewDownloader(Options{Logger: logger.NewNopLogger()})

	for run := 0; run < 2; run++ {
		paths, err := d.Download(context.Background(), []string{srv.URL + "/noext"}, dir, "", "n1")
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "0.webp")}, paths)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDownloadReportsProgress(t *testing.T) {
	srv := newCDN(t, nil)
	var calls []int
	failed := 0
	d := NewDownloader(Options{
		Concurrency: 2,
		Logger:      logger.NewNopLogger(),
		Progress: func(done, total int, f bool) {
			assert.Equal(t, 3, total)
			calls = append(calls, done)
			if f {
				failed++
			}
		},
	})

	paths, err := d.Download(context.Background(), []string{srv.URL + "/a.jpg", srv.URL + "/missing.jpg", srv.URL + "/c.png"}, t.TempDir(), "", "")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Equal(t, []int{1, 2, 3}, calls)
	assert.Equal(t, 1, failed)
}

func TestDownloadEmpty(t *testing.T) {
	paths, err := NewDownloader(Options{Logger: logger.NewNopLogger()}).Download(context.Background(), nil, t.TempDir(), "", "")
	assert.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDownloadCancelled(t *testing.T) {
	srv := newCDN(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDownloader(Options{Logger: logger.NewNopLogger()}).Download(ctx, []string{srv.URL + "/a.jpg"}, t.TempDir(), "", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		pattern, ext, noteID, want string
	}{
		{"{note_id}_{index}.{ext}", "jpg", "abc", "abc_3.jpg"},
		{"{note_id}_{index}.{ext}", "jpg", "", "3.jpg"},
		{"{index}_{note_id}.{ext}", "png", "", "3.png"},
		{"{note_id}__{index}.{ext}", "mp4", "x", "x__3.mp4"},
		{"{note_id}_{index}.{ext}", "jpg", "a__b_.c", "a__b_._3.jpg"},
		{"img__{index}_{note_id}.{ext}", "jpg", "", "img__3.jpg"},
		{"{index}.{ext}", "bin", "ignored", "3.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.pattern, 3, tt.ext, tt.noteID), tt.pattern)
	}
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, "jpg", ExtFromURL("https://cdn/x/y.jpeg"))
	assert.Equal(t, "webp", ExtFromURL("https://cdn/x/y.WEBP?imageView=1"))
	assert.Equal(t, "", ExtFromURL("https://sns-img.xhscdn.com/1040g2sg!nd_dft_wlteh_webp_3"))

	assert.Equal(t, "jpg", ExtFromContentType("image/jpeg"))
	assert.Equal(t, "mp4", ExtFromContentType("video/mp4; charset=binary"))
	assert.Equal(t, "bin", ExtFromContentType(""))
	assert.Equal(t, "bin", ExtFromContentType("text/html"))
}

func TestNoteURLs(t *testing.T) {
	n := &xhs.Note{Images: []string{"i1", "", "i2"}, Video: "v"}
	assert.Equal(t, []string{"i1", "i2", "v"}, NoteURLs(n))
	assert.Nil(t, NoteURLs(nil))
}
