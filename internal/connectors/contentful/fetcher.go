package contentful

import (
	"context"
	"net/url"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/logger"
)

var _ driven.ChangeFetcher = (*Fetcher)(nil)

// Fetcher implements driven.ChangeFetcher over the sync endpoint.
type Fetcher struct {
	client      *Client
	syncType    string
	contentType string
	locale      string
}

// NewFetcher validates cfg and builds a fetcher.
func NewFetcher(cfg Config) (*Fetcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Fetcher{
		client:      client,
		syncType:    cfg.SyncType,
		contentType: cfg.ContentType,
		locale:      cfg.Locale,
	}, nil
}

// Fetch returns one page of changes. An empty token starts an initial
// sync with the configured type filters; a token continues from it.
func (f *Fetcher) Fetch(ctx context.Context, token string) (*domain.ChangeSet, error) {
	params := url.Values{}
	if token == "" {
		params.Set("initial", "true")
		if f.syncType != "" {
			params.Set("type", f.syncType)
		}
		if f.contentType != "" {
			params.Set("content_type", f.contentType)
		}
	} else {
		params.Set("sync_token", token)
	}

	page, err := f.client.sync(ctx, params)
	if err != nil {
		return nil, err
	}

	next, more, err := page.token()
	if err != nil {
		return nil, domain.NewFatalFetchError(err)
	}

	upserts, deletions := page.changeSet(f.locale)
	logger.Debug("contentful: page with %d upserts, %d deletions (more=%t)", len(upserts), len(deletions), more)

	return &domain.ChangeSet{
		Upserts:   upserts,
		Deletions: deletions,
		NextToken: next,
		Initial:   token == "",
		HasMore:   more,
	}, nil
}
