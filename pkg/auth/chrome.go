package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/glebarez/sqlite"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"

	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
)

// chromeCookie is a row of Chrome's cookies table
type chromeCookie struct {
	HostKey        string `gorm:"column:host_key"`
	Name           string `gorm:"column:name"`
	Value          string `gorm:"column:value"`
	EncryptedValue []byte `gorm:"column:encrypted_value"`
}

func (chromeCookie) TableName() string { return "cookies" }

// chromeMeta is a row of Chrome's meta table
type chromeMeta struct {
	Key   string `gorm:"column:key"`
	Value string `gorm:"column:value"`
}

func (chromeMeta) TableName() string { return "meta" }

// siteCookieHost is the host whose cookies win over subdomain duplicates
const siteCookieHost = ".xiaohongshu.com"

// Values from Chrome's os_crypt implementation
var (
	chromeSalt = []byte("saltysalt")
	chromeIV   = bytes.Repeat([]byte{' '}, aes.BlockSize)
)

// chromePassword returns the os_crypt password and PBKDF2 iteration count
var chromePassword = func() ([]byte, int, error) {
	switch runtime.GOOS {
	case "darwin":
		secret, err := keyring.Get("Chrome Safe Storage", "Chrome")
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read Chrome Safe Storage from keychain: %w", err)
		}
		return []byte(secret), 1003, nil
	case "linux":
		return []byte("peanuts"), 1, nil
	default:
		return nil, 0, fmt.Errorf("decrypting Chrome cookies is not supported on %s", runtime.GOOS)
	}
}

// DefaultChromeCookiePath returns the Cookies database of the default
// Chrome profile, preferring the newer Network/ location.
func DefaultChromeCookiePath() (string, error) {
	var profile string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		profile = filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "Default")
	case "windows":
		profile = filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "User Data", "Default")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		profile = filepath.Join(home, ".config", "google-chrome", "Default")
	}

	for _, candidate := range []string{
		filepath.Join(profile, "Network", "Cookies"),
		filepath.Join(profile, "Cookies"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("chrome cookie database not found under %s", profile)
}

// ExtractChromeCookies reads xiaohongshu cookies from a Chrome cookie
// database. The database is copied first since Chrome keeps it locked.
// Cookies that cannot be decrypted are skipped with a warning. An empty
// dbPath selects DefaultChromeCookiePath.
func ExtractChromeCookies(ctx context.Context, dbPath string, log logger.Logger) (map[string]string, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if dbPath == "" {
		p, err := DefaultChromeCookiePath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	tmp, err := copyToTemp(dbPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	db, err := gorm.Open(sqlite.Open(tmp), &gorm.Config{Logger: NewGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	db = db.WithContext(ctx)

	// Rows are read so that a later row wins: subdomains in host order,
	// then the site-wide .xiaohongshu.com cookies.
	var rows []chromeCookie
	err = db.Where("host_key LIKE ? OR host_key LIKE ?", "%xiaohongshu%", "%xhs%").
		Order(gorm.Expr("host_key = ?, host_key", siteCookieHost)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}

	// Databases from version 24 on prefix each plaintext with a SHA-256 of the host
	var meta chromeMeta
	version := 0
	if err := db.Where("key = ?", "version").Limit(1).Find(&meta).Error; err == nil {
		version, _ = strconv.Atoi(meta.Value)
	}

	var key []byte
	cookies := make(map[string]string)
	for _, row := range rows {
		value := row.Value
		if value == "" && len(row.EncryptedValue) > 0 {
			if key == nil {
				password, iterations, err := chromePassword()
				if err != nil {
					return nil, err
				}
				key = pbkdf2.Key(password, chromeSalt, iterations, 16, sha1.New)
			}
			plain, err := decryptChromeValue(row.EncryptedValue, key, version >= 24)
			if err != nil {
				log.WithError(err).WithField("cookie", row.Name).Warn("Skipping undecryptable cookie")
				continue
			}
			value = plain
		}
		if value != "" {
			cookies[row.Name] = value
		}
	}

	log.InfoWithFields("Chrome cookies extracted", map[string]interface{}{
		"path":    dbPath,
		"cookies": len(cookies),
	})
	if len(cookies) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return cookies, nil
}

// decryptChromeValue undoes os_crypt's v10 AES-128-CBC scheme
func decryptChromeValue(enc, key []byte, hostPrefixed bool) (string, error) {
	if !bytes.HasPrefix(enc, []byte("v10")) {
		return "", errors.New("unsupported cookie encryption version")
	}
	enc = enc[3:]
	if len(enc) == 0 || len(enc)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, chromeIV).CryptBlocks(plain, enc)

	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plain) {
		return "", errors.New("invalid padding")
	}
	plain = plain[:len(plain)-pad]

	if hostPrefixed {
		if len(plain) < 32 {
			return "", errors.New("decrypted value shorter than host digest")
		}
		plain = plain[32:]
	}
	return string(plain), nil
}

func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open cookie database: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "xhs-cookies-*.db")
	if err != nil {
		return "", fmt.Errorf("failed to create temp copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to copy cookie database: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
