package contentful

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// fakeCDA serves canned responses and records requests.
type fakeCDA struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeCDA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeCDA) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestFetcher(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), mutate ...func(*Config)) (*Fetcher, *fakeCDA) {
	t.Helper()
	fake := &fakeCDA{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := Config{
		SpaceID:       "space1",
		AccessToken:   "cda-token",
		BaseURL:       srv.URL,
		RatePerSecond: 1000,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f, err := NewFetcher(cfg)
	require.NoError(t, err)
	return f, fake
}

func jsonResponse(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}
}

const initialPage = `{
  "sys": {"type": "Array"},
  "items": [
    {
      "sys": {
        "type": "Entry", "id": "e1",
        "createdAt": "2024-01-02T03:04:05.000Z", "updatedAt": "2024-01-03T03:04:05.000Z",
        "contentType": {"sys": {"type": "Link", "linkType": "ContentType", "id": "post"}}
      },
      "fields": {"title": {"en-US": "Hello", "de-DE": "Hallo"}, "slug": {"en-US": "hello"}}
    },
    {
      "sys": {"type": "Asset", "id": "a1", "createdAt": "2024-01-02T03:04:05.000Z", "updatedAt": "2024-01-02T03:04:05.000Z"},
      "fields": {"title": {"en-US": "Logo"}}
    },
    {"sys": {"type": "DeletedEntry", "id": "gone-entry"}},
    {"sys": {"type": "DeletedAsset", "id": "gone-asset"}},
    {"sys": {"type": "ContentType", "id": "post"}}
  ],
  "nextSyncUrl": "https://cdn.contentful.com/spaces/space1/environments/master/sync?sync_token=NEXT1"
}`

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher(Config{AccessToken: "t"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewFetcher(Config{SpaceID: "s"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewFetcher(Config{SpaceID: "s", AccessToken: "t", SyncType: "Everything"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewFetcher(Config{SpaceID: "s", AccessToken: "t", SyncType: SyncTypeAsset, ContentType: "post"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFetcher_InitialSync(t *testing.T) {
	f, fake := newTestFetcher(t, jsonResponse(http.StatusOK, initialPage), func(c *Config) {
		c.ContentType = "post"
	})

	cs, err := f.Fetch(context.Background(), "")
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, "/spaces/space1/environments/master/sync", req.URL.Path)
	assert.Equal(t, "true", req.URL.Query().Get("initial"))
	assert.Equal(t, "Entry", req.URL.Query().Get("type"))
	assert.Equal(t, "post", req.URL.Query().Get("content_type"))
	assert.False(t, req.URL.Query().Has("sync_token"))
	assert.Equal(t, "Bearer cda-token", req.Header.Get("Authorization"))

	assert.True(t, cs.Initial)
	assert.False(t, cs.HasMore)
	assert.Equal(t, "NEXT1", cs.NextToken)
	assert.Equal(t, []string{"gone-entry", "gone-asset"}, cs.Deletions)

	require.Len(t, cs.Upserts, 2)
	entry := cs.Upserts[0]
	assert.Equal(t, "e1", entry.ID)
	assert.Equal(t, domain.KindEntry, entry.Kind)
	assert.Equal(t, "post", entry.TypeID)
	assert.Equal(t, time.Date(2024, 1, 3, 3, 4, 5, 0, time.UTC), entry.UpdatedAt.UTC())
	assert.Equal(t, map[string]any{"en-US": "Hello", "de-DE": "Hallo"}, entry.Fields["title"])

	asset := cs.Upserts[1]
	assert.Equal(t, domain.KindAsset, asset.Kind)
	assert.Empty(t, asset.TypeID)

	rec := entry.Record()
	assert.Equal(t, "e1", rec.ObjectID())
	assert.Equal(t, "post", rec[domain.FieldContentType])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", rec[domain.FieldCreatedAt])
}

func TestFetcher_IncrementalSendsOnlyToken(t *testing.T) {
	f, fake := newTestFetcher(t, jsonResponse(http.StatusOK,
		`{"items": [], "nextSyncUrl": "https://cdn.contentful.com/x/sync?sync_token=T2"}`),
		func(c *Config) { c.ContentType = "post" })

	cs, err := f.Fetch(context.Background(), "T1")
	require.NoError(t, err)

	q := fake.last().URL.Query()
	assert.Equal(t, "T1", q.Get("sync_token"))
	assert.False(t, q.Has("initial"))
	assert.False(t, q.Has("content_type"))
	assert.False(t, q.Has("type"))

	assert.False(t, cs.Initial)
	assert.True(t, cs.Empty())
	assert.Equal(t, "T2", cs.NextToken)
}

func TestFetcher_Pagination(t *testing.T) {
	f, _ := newTestFetcher(t, jsonResponse(http.StatusOK,
		`{"items": [{"sys": {"type": "Entry", "id": "e1"}, "fields": {}}],
		  "nextPageUrl": "https://cdn.contentful.com/x/sync?sync_token=PAGE2"}`))

	cs, err := f.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, cs.HasMore)
	assert.Equal(t, "PAGE2", cs.NextToken)
}

func TestFetcher_LocaleFlattening(t *testing.T) {
	f, _ := newTestFetcher(t, jsonResponse(http.StatusOK, initialPage), func(c *Config) {
		c.Locale = "de-DE"
	})

	cs, err := f.Fetch(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"title": "Hallo"}, cs.Upserts[0].Fields)
	assert.Empty(t, cs.Upserts[1].Fields, "asset has no de-DE values")
}

func TestFetcher_MissingToken(t *testing.T) {
	f, _ := newTestFetcher(t, jsonResponse(http.StatusOK, `{"items": []}`))

	_, err := f.Fetch(context.Background(), "T")
	assert.ErrorIs(t, err, domain.ErrFatalFetch)
	assert.ErrorIs(t, err, ErrMissingSyncToken)
}

func TestFetcher_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		token      string
		headers    map[string]string
		transient  bool
		expired    bool
		auth       bool
		retryAfter time.Duration
	}{
		{name: "rate limited", status: 429, token: "T", headers: map[string]string{HeaderRateLimitReset: "0"}, transient: true},
		{name: "server error", status: 503, token: "T", transient: true},
		{name: "unauthorized", status: 401, auth: true},
		{name: "forbidden", status: 403, token: "T", auth: true},
		{name: "token rejected", status: 400, token: "T", expired: true},
		{name: "token not found", status: 404, token: "T", expired: true},
		{name: "token gone", status: 410, token: "T", expired: true},
		{name: "bad initial request", status: 400},
		{name: "unknown space", status: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, `{"sys": {"type": "Error", "id": "SomeError"}, "message": "nope", "requestId": "req-1"}`)
			})

			_, err := f.Fetch(context.Background(), tt.token)
			require.Error(t, err)

			var fe *domain.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.transient, errors.Is(err, domain.ErrTransientFetch))
			assert.Equal(t, !tt.transient, errors.Is(err, domain.ErrFatalFetch))
			assert.Equal(t, tt.expired, errors.Is(err, domain.ErrTokenExpired))
			assert.Equal(t, tt.auth, errors.Is(err, domain.ErrAuthInvalid))
			assert.Contains(t, err.Error(), "SomeError")
			assert.Contains(t, err.Error(), "req-1")
		})
	}
}

func TestFetcher_RateLimitCarriesRetryAfter(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(HeaderRateLimitReset, "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := f.Fetch(context.Background(), "T")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 7*time.Second, domain.RetryAfter(err))
}

func TestFetcher_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, err := NewFetcher(Config{SpaceID: "s", AccessToken: "t", BaseURL: url, RatePerSecond: 1000})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "T")
	assert.ErrorIs(t, err, domain.ErrTransientFetch)
}

func TestFetcher_TruncatedBodyIsTransient(t *testing.T) {
	f, _ := newTestFetcher(t, jsonResponse(http.StatusOK, `{"items": [{"sys": `))

	_, err := f.Fetch(context.Background(), "T")
	assert.ErrorIs(t, err, domain.ErrTransientFetch)
}

func TestFetcher_CancelledContext(t *testing.T) {
	f, fake := newTestFetcher(t, jsonResponse(http.StatusOK, initialPage))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTransientFetch), "cancellation must not be retried")
	assert.Empty(t, fake.requests)
}
