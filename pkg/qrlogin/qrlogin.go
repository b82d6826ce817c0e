// Package qrlogin logs in by QR code: it creates a code, polls its status
// until the phone app confirms it, and returns the session cookies.
package qrlogin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// State is the lifecycle of a QR code
type State int

const (
	StateCreated State = iota
	StatePending
	StateScanned
	StateConfirmed
	StateExpired
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePending:
		return "pending"
	case StateScanned:
		return "scanned"
	case StateConfirmed:
		return "confirmed"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further polling can change the state
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateExpired || s == StateFailed
}

var (
	// ErrExpired is returned once the server reports the code expired
	ErrExpired = errors.New("qr code expired")

	// ErrTimeout is returned when the polling budget runs out
	ErrTimeout = errors.New("qr code was not confirmed in time")
)

const (
	DefaultBudget   = 5 * time.Minute
	DefaultInterval = time.Second
)

// APIClient is the executor the login flow issues requests through
type APIClient interface {
	Do(ctx context.Context, r xhs.Request) (map[string]any, error)
}

// Session is one QR code and what is known about it
type Session struct {
	ID      string
	Code    string
	URL     string
	State   State
	Cookies map[string]string
}

// Login drives the QR state machine
type Login struct {
	client APIClient
	logger logger.Logger
}

// New creates a Login over client
func New(client APIClient, log logger.Logger) *Login {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Login{client: client, logger: log.WithField("component", "qrlogin")}
}

// NewDeviceCookies returns placeholder device cookies for a client that
// has never visited the site. The server replaces them on confirmation.
func NewDeviceCookies() map[string]string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	web := strings.ReplaceAll(uuid.NewString(), "-", "")
	return map[string]string{
		"a1":    fmt.Sprintf("%x%s", time.Now().UnixMilli(), id),
		"webId": web,
	}
}

// Create asks the server for a new QR code
func (l *Login) Create(ctx context.Context) (*Session, error) {
	resp, err := l.client.Do(ctx, xhs.Request{
		Method:  http.MethodPost,
		Path:    xhs.QRCodeCreateEndpoint,
		Payload: map[string]any{"qr_type": 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	if ok, present := resp["success"].(bool); present && !ok {
		return nil, xerrors.API(http.StatusOK, "QR code creation failed: "+message(resp), resp)
	}

	data, _ := resp["data"].(map[string]any)
	s := &Session{State: StateCreated}
	s.ID = stringAt(data, "qr_id")
	s.Code = stringAt(data, "code")
	s.URL = stringAt(data, "url")
	if nested, ok := data["qrCode"].(map[string]any); ok {
		if s.ID == "" {
			s.ID = stringAt(nested, "qrcodeId")
		}
		if s.URL == "" {
			s.URL = stringAt(nested, "url")
		}
	}
	if s.ID == "" {
		return nil, xerrors.API(http.StatusOK, "no QR code id in response", resp)
	}

	l.logger.WithField("qr_id", s.ID).Info("QR code created")
	return s, nil
}

// Poll checks the code once and advances s. It returns ErrExpired when
// the server reports expiry; other errors leave the state unchanged.
func (l *Login) Poll(ctx context.Context, s *Session) (State, error) {
	if s.State.Terminal() {
		return s.State, nil
	}

	resp, err := l.client.Do(ctx, xhs.Request{
		Method: http.MethodGet,
		Path:   xhs.QRCodeStatusEndpoint,
		Params: map[string]any{"qr_id": s.ID, "code": s.Code, "qrcodeId": s.ID},
	})
	if err != nil {
		return s.State, err
	}

	if ok, present := resp["success"].(bool); present && !ok {
		msg := message(resp)
		if strings.Contains(strings.ToLower(msg), "expired") {
			s.State = StateExpired
			return s.State, fmt.Errorf("%w: %s", ErrExpired, msg)
		}
		return s.State, xerrors.API(http.StatusOK, "QR status check failed: "+msg, resp)
	}

	data, _ := resp["data"].(map[string]any)
	status := statusOf(data)
	switch status {
	case 0:
		s.State = StatePending
	case 1:
		s.State = StateScanned
	case 2:
		cookies := cookiesOf(data)
		if len(cookies) == 0 {
			// Confirmed but cookies not issued yet; try again next poll.
			s.State = StateScanned
			break
		}
		s.Cookies = cookies
		s.State = StateConfirmed
	case 3:
		s.State = StateExpired
		return s.State, ErrExpired
	}
	return s.State, nil
}

// Run creates a code, reports it through onCreated, and polls every
// interval until confirmation, expiry, or budget exhaustion. Non-fatal
// poll errors are logged and polling continues.
func (l *Login) Run(ctx context.Context, budget, interval time.Duration, onCreated func(*Session)) (map[string]string, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s, err := l.Create(ctx)
	if err != nil {
		return nil, err
	}
	if onCreated != nil {
		onCreated(s)
	}

	deadline := time.Now().Add(budget)
	last := s.State
	for time.Now().Before(deadline) {
		state, err := l.Poll(ctx, s)
		switch {
		case errors.Is(err, ErrExpired):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			l.logger.WithError(err).Warn("QR status check failed, retrying")
		}

		if state != last {
			l.logger.WithField("state", state.String()).Info("QR state changed")
			last = state
		}
		if state == StateConfirmed {
			return s.Cookies, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.State = StateFailed
	return nil, fmt.Errorf("%w after %s", ErrTimeout, budget)
}

func message(resp map[string]any) string {
	for _, k := range []string{"msg", "message"} {
		if m, ok := resp[k].(string); ok && m != "" {
			return m
		}
	}
	return "unknown error"
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// statusOf reads the status code; codeStatus is the newer field name
func statusOf(data map[string]any) int {
	for _, k := range []string{"status", "code_status", "codeStatus"} {
		if v, ok := data[k].(float64); ok {
			return int(v)
		}
	}
	return 0
}

// cookiesOf collects {name, value} pairs from data.cookies
func cookiesOf(data map[string]any) map[string]string {
	cookies := make(map[string]string)
	switch raw := data["cookies"].(type) {
	case []any:
		for _, c := range raw {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			name, value := stringAt(m, "name"), stringAt(m, "value")
			if name != "" && value != "" {
				cookies[name] = value
			}
		}
	case map[string]any:
		for name, v := range raw {
			if value, ok := v.(string); ok && value != "" {
				cookies[name] = value
			}
		}
	}
	if info, ok := data["login_info"].(map[string]any); ok {
		if session := stringAt(info, "session"); session != "" {
			if _, has := cookies["web_session"]; !has {
				cookies["web_session"] = session
			}
		}
	}
	return cookies
}
