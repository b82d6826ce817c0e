package main

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"

	"github.com/CNHLAIA/XHS-Scraper/pkg/auth"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/export"
	"github.com/CNHLAIA/XHS-Scraper/pkg/retry"
	"github.com/CNHLAIA/XHS-Scraper/pkg/scraper"
	"github.com/CNHLAIA/XHS-Scraper/pkg/sign"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ui"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// session is an open client plus the retry policy wrapped around it
type session struct {
	client *xhs.Client
	retry  *retry.Config
}

// Do runs one request under the configured retry policy
func (s *session) Do(ctx context.Context, r xhs.Request) (map[string]any, error) {
	return retry.DoWithResult(ctx, s.retry, func(ctx context.Context) (map[string]any, error) {
		return s.client.Do(ctx, r)
	})
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		log.WithError(err).Debug("Failed to close client")
	}
}

// loadAccount picks cookies from --cookies / cookies_file first, then the
// named account, then the newest stored account or the environment.
func loadAccount() (*auth.Account, error) {
	if cfg.XHS.CookiesFile != "" {
		cookies, err := auth.LoadCookiesFile(cfg.XHS.CookiesFile)
		if err != nil {
			return nil, err
		}
		if err := auth.ValidateCookies(cookies); err != nil {
			return nil, err
		}
		return &auth.Account{Name: filepath.Base(cfg.XHS.CookiesFile), Cookies: cookies}, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, err
	}

	var account *auth.Account
	if cfg.XHS.Account != "" {
		account, err = manager.Retrieve(cfg.XHS.Account)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		return nil, xerrors.InvalidConfig("no stored session found; run 'xhs auth login' or pass --cookies")
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func newSigner() (sign.Signer, error) {
	if cfg.XHS.SignServerURL == "" {
		return nil, xerrors.InvalidConfig("a signing service is required; set --sign-server or XHS_SIGN_SERVER_URL")
	}
	return sign.NewRemoteSigner(cfg.XHS.SignServerURL, cfg.XHS.Timeout, log), nil
}

func clientOptions(signer sign.Signer, userAgent string) []xhs.Option {
	if userAgent == "" {
		userAgent = cfg.XHS.UserAgent
	}
	opts := []xhs.Option{
		xhs.WithSigner(signer),
		xhs.WithTimeout(cfg.XHS.Timeout),
		xhs.WithUserAgent(userAgent),
		xhs.WithLogger(log),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, xhs.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	return opts
}

// openSession builds and opens a client for the selected account
func openSession(ctx context.Context) (*session, error) {
	account, err := loadAccount()
	if err != nil {
		return nil, err
	}
	signer, err := newSigner()
	if err != nil {
		return nil, err
	}

	client, err := xhs.NewClient(account.Cookies, clientOptions(signer, account.UserAgent)...)
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	log.WithField("account", account.Name).Debug("Session opened")
	return &session{client: client, retry: retry.FromSettings(cfg.Retry, log)}, nil
}

// newScraper opens a session and wraps it in a Scraper
func newScraper(ctx context.Context) (*scraper.Scraper, *session, error) {
	s, err := openSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return scraper.New(s, 0, log), s, nil
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// writeResults exports v under the output directory and reports the files
func writeResults(v any, name string) error {
	base := filepath.Join(cfg.Output.Directory, unsafeName.ReplaceAllString(name, "_"))
	paths, err := export.Write(v, base, cfg.Output.Format)
	if err != nil {
		return err
	}
	for _, p := range paths {
		ui.PrintSuccess("Saved " + p)
	}
	return nil
}
