package driven

import (
	"context"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// ChangeFetcher retrieves change sets from the content store.
// Each content store (Contentful, a local directory, etc.) implements this interface.
type ChangeFetcher interface {
	// Fetch returns the next change set.
	// An empty token requests an initial fetch of every current item.
	// A non-empty token requests changes since that token.
	//
	// Errors are *domain.FetchError so callers can tell transient
	// failures from fatal ones and detect expired tokens.
	Fetch(ctx context.Context, token string) (*domain.ChangeSet, error)
}
