package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
)

func encryptChromeValue(t *testing.T, plain, key []byte) []byte {
	t.Helper()
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, chromeIV).CryptBlocks(out, padded)
	return append([]byte("v10"), out...)
}

func newChromeDB(t *testing.T, version string, rows []chromeCookie) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Cookies")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: NewGormLogger(logger.NewNopLogger())})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE cookies (host_key TEXT, name TEXT, value TEXT, encrypted_value BLOB)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`).Error)
	require.NoError(t, db.Create(&chromeMeta{Key: "version", Value: version}).Error)
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func withPeanuts(t *testing.T) []byte {
	t.Helper()
	orig := chromePassword
	chromePassword = func() ([]byte, int, error) { return []byte("peanuts"), 1, nil }
	t.Cleanup(func() { chromePassword = orig })
	return pbkdf2.Key([]byte("peanuts"), chromeSalt, 1, 16, sha1.New)
}

func TestExtractChromeCookies(t *testing.T) {
	key := withPeanuts(t)

	path := newChromeDB(t, "23", []chromeCookie{
		{HostKey: ".xiaohongshu.com", Name: "a1", Value: "plain_a1"},
		{HostKey: ".xiaohongshu.com", Name: "web_session", EncryptedValue: encryptChromeValue(t, []byte("secret_session"), key)},
		{HostKey: "edith.xiaohongshu.com", Name: "broken", EncryptedValue: []byte("v11garbage")},
		{HostKey: ".example.com", Name: "other", Value: "ignored"},
	})

	tl := logger.NewTestLogger()
	cookies, err := ExtractChromeCookies(context.Background(), path, tl)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "plain_a1", "web_session": "secret_session"}, cookies)
	assert.True(t, tl.HasMessage("Skipping undecryptable cookie"))
	assert.NoError(t, ValidateCookies(cookies))
}

func TestExtractChromeCookiesHostDigest(t *testing.T) {
	key := withPeanuts(t)
	digest := sha256.Sum256([]byte(".xiaohongshu.com"))
	plain := append(digest[:], []byte("digest_session")...)

	path := newChromeDB(t, "24", []chromeCookie{
		{HostKey: ".xiaohongshu.com", Name: "web_session", EncryptedValue: encryptChromeValue(t, plain, key)},
	})

	cookies, err := ExtractChromeCookies(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "digest_session", cookies["web_session"])
}

func TestExtractChromeCookiesPrefersSiteHost(t *testing.T) {
	withPeanuts(t)
	orders := [][]chromeCookie{
		{
			{HostKey: ".xiaohongshu.com", Name: "web_session", Value: "site"},
			{HostKey: "www.xiaohongshu.com", Name: "web_session", Value: "www"},
			{HostKey: "edith.xiaohongshu.com", Name: "web_session", Value: "edith"},
			{HostKey: "edith.xiaohongshu.com", Name: "gid", Value: "edith_gid"},
			{HostKey: "www.xiaohongshu.com", Name: "gid", Value: "www_gid"},
		},
		{
			{HostKey: "www.xiaohongshu.com", Name: "gid", Value: "www_gid"},
			{HostKey: "edith.xiaohongshu.com", Name: "web_session", Value: "edith"},
			{HostKey: "edith.xiaohongshu.com", Name: "gid", Value: "edith_gid"},
			{HostKey: "www.xiaohongshu.com", Name: "web_session", Value: "www"},
			{HostKey: ".xiaohongshu.com", Name: "web_session", Value: "site"},
		},
	}

	for _, rows := range orders {
		cookies, err := ExtractChromeCookies(context.Background(), newChromeDB(t, "23", rows), nil)
		require.NoError(t, err)
		assert.Equal(t, "site", cookies["web_session"])
		assert.Equal(t, "www_gid", cookies["gid"])
	}
}

func TestExtractChromeCookiesNone(t *testing.T) {
	path := newChromeDB(t, "23", []chromeCookie{{HostKey: ".example.com", Name: "x", Value: "y"}})

	_, err := ExtractChromeCookies(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	_, err = ExtractChromeCookies(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestDecryptChromeValueRejectsBadInput(t *testing.T) {
	key := pbkdf2.Key([]byte("peanuts"), chromeSalt, 1, 16, sha1.New)

	_, err := decryptChromeValue([]byte("v10short"), key, false)
	assert.Error(t, err)

	_, err = decryptChromeValue(encryptChromeValue(t, []byte("tiny"), key), key, true)
	assert.Error(t, err)
}
