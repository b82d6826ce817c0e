package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CNHLAIA/XHS-Scraper/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(t *testing.T) (*zerologLogger, *bytes.Buffer) {
	t.Helper()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}, &buf
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "verbose"}, true},
		{"rotated file", &config.LoggingConfig{Level: "info", File: filepath.Join(dir, "nested", "xhs.log"), MaxSize: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err, "log directory should be created")
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace-ish", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldChaining(t *testing.T) {
	l, buf := bufferLogger(t)

	l.WithField("note_id", "abc").
		WithFields(map[string]interface{}{"page": 2, "has_more": true}).
		WithError(errors.New("boom")).
		Info("chained fields")

	out := buf.String()
	assert.Contains(t, out, "chained fields")
	assert.Contains(t, out, `"note_id":"abc"`)
	assert.Contains(t, out, `"page":2`)
	assert.Contains(t, out, `"has_more":true`)
	assert.Contains(t, out, `"error":"boom"`)

	// Parent is not mutated by children.
	buf.Reset()
	l.Info("plain")
	assert.NotContains(t, buf.String(), "note_id")
}

func TestWithErrorNil(t *testing.T) {
	l, _ := bufferLogger(t)
	assert.Same(t, l, l.WithError(nil))
}

func TestStructuredFieldTypes(t *testing.T) {
	l, buf := bufferLogger(t)

	l.WarnWithFields("typed", map[string]interface{}{
		"dur":    1500 * time.Millisecond,
		"ratio":  0.5,
		"count":  int64(9),
		"tags":   []string{"a", "b"},
		"custom": struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"ratio":0.5`)
	assert.Contains(t, out, `"count":9`)
	assert.Contains(t, out, `"tags":["a","b"]`)
}

func TestLogRequestLevels(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "/api/sns/web/v1/user/selfinfo", 200, time.Millisecond)
	LogRequest(tl, "POST", "/api/sns/web/v2/comment/page", 461, time.Millisecond)
	LogRequest(tl, "GET", "/x", 503, time.Millisecond)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "DEBUG", msgs[0].Level)
	assert.Equal(t, "WARN", msgs[1].Level)
	assert.Equal(t, 461, msgs[1].Fields["status_code"])
	assert.Equal(t, "ERROR", msgs[2].Level)
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "qrlogin").WithError(errors.New("expired"))
	child.Warn("QR code expired")

	msgs := tl.GetMessagesByLevel("WARN")
	require.Len(t, msgs, 1)
	assert.Equal(t, "qrlogin", msgs[0].Fields["component"])
	assert.EqualError(t, msgs[0].Error, "expired")
	assert.True(t, tl.HasMessage("expired"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())

	Info("info message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("x")).Warn("with error")
}

func TestSecretFieldsAreMasked(t *testing.T) {
	l, buf := bufferLogger(t)

	l.WithField("web_session", "040069b5f1a2b3c4d5e6").
		InfoWithFields("session loaded", map[string]interface{}{"A1": "short", "account": "main"})

	out := buf.String()
	assert.NotContains(t, out, "040069b5f1a2b3c4d5e6")
	assert.Contains(t, out, `"web_session":"0400***"`)
	assert.Contains(t, out, `"A1":"***"`)
	assert.Contains(t, out, `"account":"main"`)
}

func TestConsoleWriterColor(t *testing.T) {
	var plain, colored bytes.Buffer
	plainLogger := zerolog.New(consoleWriter(&plain, false))
	plainLogger.Warn().Str("note_id", "n1").Msg("hello")
	coloredLogger := zerolog.New(consoleWriter(&colored, true))
	coloredLogger.Warn().Str("note_id", "n1").Msg("hello")

	assert.NotContains(t, plain.String(), "\033[")
	assert.Contains(t, plain.String(), "WARN")
	assert.Contains(t, plain.String(), "note_id:")
	assert.Contains(t, colored.String(), "\033[33mWARN\033[0m")
}
