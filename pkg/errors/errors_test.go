package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{401, ErrorTypeCookieExpired},
		{403, ErrorTypeCookieExpired},
		{429, ErrorTypeRateLimit},
		{461, ErrorTypeSignature},
		{471, ErrorTypeCaptcha},
		{400, ErrorTypeAPI},
		{404, ErrorTypeAPI},
		{500, ErrorTypeAPI},
		{503, ErrorTypeAPI},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "boom", nil)
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.code, err.Code)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "API Error 500: Internal error", API(500, "Internal error", nil).Error())
	assert.Equal(t, "invalid_config: cookies cannot be empty", InvalidConfig("cookies cannot be empty").Error())
	assert.Contains(t, FromStatus(461, "Signature verification failed", nil).Error(), "Signature verification failed")
}

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("fetching comments: %w", FromStatus(401, "expired", nil))

	assert.True(t, stderrors.Is(wrapped, ErrCookieExpired))
	assert.False(t, stderrors.Is(wrapped, ErrRateLimit))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, 401, e.Code)
	assert.Equal(t, ErrorTypeCookieExpired, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", FromStatus(429, "slow down", nil), true},
		{"server error", API(502, "bad gateway", nil), true},
		{"transport", API(0, "connection refused", nil), true},
		{"cookie expired", FromStatus(403, "", nil), false},
		{"signature", FromStatus(461, "", nil), false},
		{"captcha", FromStatus(471, "", nil), false},
		{"client error", API(400, "bad request", nil), false},
		{"config", InvalidConfig("bad"), false},
		{"foreign", stderrors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
