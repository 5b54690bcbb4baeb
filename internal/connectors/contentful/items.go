package contentful

import (
	"net/url"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// Item types in a sync response.
const (
	typeEntry        = "Entry"
	typeAsset        = "Asset"
	typeDeletedEntry = "DeletedEntry"
	typeDeletedAsset = "DeletedAsset"
)

type link struct {
	Sys struct {
		ID string `json:"id"`
	} `json:"sys"`
}

type itemSys struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ContentType *link     `json:"contentType"`
}

type syncItem struct {
	Sys    itemSys        `json:"sys"`
	Fields map[string]any `json:"fields"`
}

// syncPage is one page of the sync endpoint's response.
type syncPage struct {
	Items       []syncItem `json:"items"`
	NextPageURL string     `json:"nextPageUrl"`
	NextSyncURL string     `json:"nextSyncUrl"`
}

// token extracts the sync token from whichever next URL is present.
func (p *syncPage) token() (string, bool, error) {
	next, more := p.NextSyncURL, false
	if p.NextPageURL != "" {
		next, more = p.NextPageURL, true
	}
	if next == "" {
		return "", false, ErrMissingSyncToken
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", false, err
	}
	token := u.Query().Get("sync_token")
	if token == "" {
		return "", false, ErrMissingSyncToken
	}
	return token, more, nil
}

// changeSet converts the page's items. Unknown item types are skipped.
func (p *syncPage) changeSet(locale string) (upserts []domain.ContentItem, deletions []string) {
	for _, it := range p.Items {
		switch it.Sys.Type {
		case typeEntry, typeAsset:
			upserts = append(upserts, toContentItem(it, locale))
		case typeDeletedEntry, typeDeletedAsset:
			deletions = append(deletions, it.Sys.ID)
		default:
			logger.Debug("contentful: skipping item %s of type %q", it.Sys.ID, it.Sys.Type)
		}
	}
	return upserts, deletions
}

func toContentItem(it syncItem, locale string) domain.ContentItem {
	item := domain.ContentItem{
		ID:        it.Sys.ID,
		Kind:      domain.KindEntry,
		CreatedAt: it.Sys.CreatedAt,
		UpdatedAt: it.Sys.UpdatedAt,
		Fields:    localize(it.Fields, locale),
	}
	if it.Sys.Type == typeAsset {
		item.Kind = domain.KindAsset
	}
	if it.Sys.ContentType != nil {
		item.TypeID = it.Sys.ContentType.Sys.ID
	}
	return item
}

// localize picks one locale out of locale-keyed field values. Fields with
// no value in that locale are dropped. An empty locale keeps fields as-is.
func localize(fields map[string]any, locale string) map[string]any {
	if locale == "" || fields == nil {
		return fields
	}
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		byLocale, ok := v.(map[string]any)
		if !ok {
			out[name] = v
			continue
		}
		if lv, ok := byLocale[locale]; ok {
			out[name] = lv
		}
	}
	return out
}
