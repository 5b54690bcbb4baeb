package contentful

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// maxResponseBytes bounds a single sync page.
const maxResponseBytes = 64 << 20

// Client calls the sync endpoint of one space environment.
type Client struct {
	http        *http.Client
	syncURL     string
	rateLimiter *RateLimiter
}

// NewClient creates a client authenticated with the config's access token.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = cfg.Timeout

	return &Client{
		http: hc,
		syncURL: fmt.Sprintf("%s/spaces/%s/environments/%s/sync",
			cfg.BaseURL, url.PathEscape(cfg.SpaceID), url.PathEscape(cfg.Environment)),
		rateLimiter: NewRateLimiter(cfg.RatePerSecond),
	}, nil
}

// sync requests one page. Every failure is returned as a *domain.FetchError.
func (c *Client) sync(ctx context.Context, params url.Values) (*syncPage, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.NewFatalFetchError(ctxErr)
		}
		return nil, domain.NewTransientFetchError(fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.syncURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, domain.NewFatalFetchError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.NewFatalFetchError(ctxErr)
		}
		return nil, domain.NewTransientFetchError(fmt.Errorf("request sync: %w", err))
	}
	defer resp.Body.Close()

	c.rateLimiter.Observe(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.FetchError{Transient: true, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp, body, params.Has("sync_token"))
	}

	var page syncPage
	if err := json.Unmarshal(body, &page); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Truncated bodies happen when a connection drops mid-response.
			return nil, &domain.FetchError{Transient: true, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil, &domain.FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &page, nil
}
