package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

const (
	// DefaultProfileTTL is how long a fetched profile is reused
	DefaultProfileTTL = 10 * time.Minute

	selfKey = "\x00self"
)

// UserScraper fetches profiles and caches them for a short time
type UserScraper struct {
	client APIClient
	cache  *cache.Cache
	logger logger.Logger
}

// NewUserScraper creates a user scraper. ttl <= 0 selects DefaultProfileTTL.
func NewUserScraper(client APIClient, ttl time.Duration, log logger.Logger) *UserScraper {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &UserScraper{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
		logger: log.WithField("scraper", "users"),
	}
}

// GetUserInfo returns the public profile of userID
func (s *UserScraper) GetUserInfo(ctx context.Context, userID string) (*xhs.User, error) {
	if userID == "" {
		return nil, xerrors.InvalidConfig("user id must be non-empty")
	}
	return s.cached(ctx, userID, xhs.Request{
		Method: http.MethodGet,
		Path:   xhs.UserOtherInfoEndpoint,
		Params: map[string]any{"target_user_id": userID},
	})
}

// GetSelfInfo returns the profile of the logged-in account
func (s *UserScraper) GetSelfInfo(ctx context.Context) (*xhs.User, error) {
	return s.cached(ctx, selfKey, xhs.Request{Method: http.MethodGet, Path: xhs.UserSelfInfoEndpoint})
}

// Forget drops a cached profile
func (s *UserScraper) Forget(userID string) {
	s.cache.Delete(userID)
}

func (s *UserScraper) cached(ctx context.Context, key string, r xhs.Request) (*xhs.User, error) {
	if v, ok := s.cache.Get(key); ok {
		u := v.(xhs.User)
		return &u, nil
	}

	resp, err := s.client.Do(ctx, r)
	if err != nil {
		return nil, err
	}

	u, err := parseUser(envelope(resp))
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, u)
	s.logger.WithField("user_id", u.UserID).Debug("Profile fetched")
	return &u, nil
}

// parseUser reads a profile from basic_info/user_info sections, falling
// back to the flat object. Counts live under interactions as
// {type, count} pairs.
func parseUser(data map[string]any) (xhs.User, error) {
	src := map[string]any{}
	for _, section := range []string{"basic_info", "user_info"} {
		if m, ok := data[section].(map[string]any); ok {
			for k, v := range m {
				src[k] = v
			}
		}
	}
	if len(src) == 0 {
		src = data
	} else if _, ok := src["user_id"]; !ok {
		if id, ok := data["user_id"]; ok {
			src["user_id"] = id
		}
	}

	var u xhs.User
	if err := xhs.Decode(src, &u); err != nil {
		return xhs.User{}, xerrors.API(0, "malformed user profile: "+err.Error(), data)
	}

	if inter, ok := data["interactions"].([]any); ok {
		for _, it := range inter {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			var c xhs.Count
			switch v := m["count"].(type) {
			case string:
				c = xhs.Count(xhs.ParseCount(v))
			case float64:
				c = xhs.Count(v)
			}
			switch m["type"] {
			case "fans":
				u.Followers = &c
			case "follows":
				u.Following = &c
			}
		}
	}
	return u, nil
}
