package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/metrics"
)

// minLinksPerPage is the end-of-listing signal: a real listing page links to many
// articles, so fewer than this many candidates means the index is exhausted.
const minLinksPerPage = 2

// PaginatorConfig controls the listing walk.
type PaginatorConfig struct {
	// Delay is waited before every listing page fetch.
	Delay time.Duration
	// PageLimit stops the walk after this many pages; zero means unlimited.
	PageLimit int
	// RequestTimeout is passed through to the fetcher.
	RequestTimeout time.Duration
}

// Paginator walks listing pages sequentially and collects candidate article URLs.
type Paginator struct {
	fetcher Fetcher
	cfg     PaginatorConfig
	pause   pauseController
	logger  *zap.Logger
}

// NewPaginator constructs a Paginator.
func NewPaginator(fetcher Fetcher, cfg PaginatorConfig, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{
		fetcher: fetcher,
		cfg:     cfg,
		pause:   timerPauseController{},
		logger:  logger,
	}
}

// Collect returns every candidate URL found across the listing, in page order then
// within-page order. Duplicates are kept. A fetch failure ends the walk without an
// error; only context cancellation is returned, together with the URLs gathered so far.
func (p *Paginator) Collect(ctx context.Context, root string) ([]string, error) {
	var urls []string
	for page := 1; ; page++ {
		if err := p.pause.Pause(ctx, p.cfg.Delay); err != nil {
			return urls, fmt.Errorf("listing walk canceled: %w", err)
		}
		if p.cfg.PageLimit > 0 && page > p.cfg.PageLimit {
			p.logger.Info("page limit reached", zap.Int("page", page), zap.Int("limit", p.cfg.PageLimit))
			break
		}

		listing, err := p.fetchListing(ctx, root, page)
		if err != nil {
			if ctx.Err() != nil {
				return urls, fmt.Errorf("listing walk canceled: %w", ctx.Err())
			}
			p.logger.Warn("listing page unavailable, stopping",
				zap.Int("page", page),
				zap.String("url", listing.URL),
				zap.Error(err),
			)
			break
		}

		candidates := FilterLinks(listing.Links, root)
		metrics.ObserveListingPage(len(candidates))
		p.logger.Info("listing page processed",
			zap.Int("page", page),
			zap.Int("links", len(listing.Links)),
			zap.Int("candidates", len(candidates)),
		)
		if len(candidates) < minLinksPerPage {
			p.logger.Info("not enough article links, stopping", zap.Int("page", page))
			break
		}
		urls = append(urls, candidates...)
	}
	p.logger.Info("listing walk finished", zap.Int("urls", len(urls)))
	return urls, nil
}

func (p *Paginator) fetchListing(ctx context.Context, root string, page int) (ListingPage, error) {
	listing := ListingPage{Number: page, URL: PageURL(root, page)}
	resp, err := p.fetcher.Fetch(ctx, FetchRequest{URL: listing.URL, Timeout: p.cfg.RequestTimeout})
	if err != nil {
		return listing, fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	links, err := ExtractLinks(resp.Body)
	if err != nil {
		return listing, fmt.Errorf("%w: %w", ErrFetchUnavailable, err)
	}
	listing.Links = links
	return listing, nil
}
