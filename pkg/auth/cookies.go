package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// ValidateCookies checks that every cookie the API requires is present
func ValidateCookies(cookies map[string]string) error {
	if len(cookies) == 0 {
		return xerrors.InvalidConfig("cookies must be a non-empty mapping")
	}
	var missing []string
	for _, name := range xhs.RequiredCookies {
		if strings.TrimSpace(cookies[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return xerrors.InvalidConfig("missing required cookies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseCookieHeader parses a browser Cookie header such as "a1=x; web_session=y"
func ParseCookieHeader(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cookies[name] = strings.TrimSpace(value)
	}
	return cookies
}

// FormatCookieHeader renders cookies as a Cookie header with sorted names
func FormatCookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}

// LoadCookiesFile reads a cookie file. It accepts a JSON object of
// name/value pairs or the array of {name, value} objects browser cookie
// exporters produce.
func LoadCookiesFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, xerrors.InvalidConfig("cookies file %s is not valid JSON", path)
	}

	cookies := make(map[string]string)
	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
		doc.ForEach(func(_, entry gjson.Result) bool {
			if name := entry.Get("name").String(); name != "" {
				cookies[name] = entry.Get("value").String()
			}
			return true
		})
	case doc.IsObject():
		doc.ForEach(func(key, value gjson.Result) bool {
			cookies[key.String()] = value.String()
			return true
		})
	default:
		return nil, xerrors.InvalidConfig("cookies file %s must hold an object or an array", path)
	}

	if len(cookies) == 0 {
		return nil, xerrors.InvalidConfig("cookies file %s holds no cookies", path)
	}
	return cookies, nil
}

// SaveCookiesFile writes cookies as a JSON object readable only by the owner
func SaveCookiesFile(path string, cookies map[string]string) error {
	if len(cookies) == 0 {
		return xerrors.InvalidConfig("refusing to save an empty cookie set")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// map keys are marshalled in sorted order
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}
	return nil
}
