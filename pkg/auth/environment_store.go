package auth

import (
	"os"
	"strings"
	"time"
)

// Environment variables read by EnvironmentStore. XHS_COOKIES takes a full
// Cookie header; XHS_A1 and XHS_WEB_SESSION override single cookies.
const (
	EnvCookies    = "XHS_COOKIES"
	EnvA1         = "XHS_A1"
	EnvWebSession = "XHS_WEB_SESSION"
	EnvUserAgent  = "XHS_USER_AGENT"
)

// EnvironmentStore is a read-only CredentialStore over environment variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

func envCookies() map[string]string {
	cookies := ParseCookieHeader(os.Getenv(EnvCookies))
	if v := strings.TrimSpace(os.Getenv(EnvA1)); v != "" {
		cookies["a1"] = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWebSession)); v != "" {
		cookies["web_session"] = v
	}
	return cookies
}

// Retrieve builds an account from the environment. The name is only a
// label here; "default" is used when none is given.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	cookies := envCookies()
	if ValidateCookies(cookies) != nil {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = "default"
	}
	return &Account{
		Name:         name,
		Cookies:      cookies,
		UserAgent:    os.Getenv(EnvUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment holds usable cookies
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return ValidateCookies(envCookies()) == nil
}
