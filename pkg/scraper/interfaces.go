package scraper

import (
	"context"

	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

// APIClient is the request executor the scrapers drive. *xhs.Client
// satisfies it; tests substitute a scripted fake.
type APIClient interface {
	Do(ctx context.Context, r xhs.Request) (map[string]any, error)
}
