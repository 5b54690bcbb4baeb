package domain

import "time"

// ContentKind identifies what sort of item the content store published.
type ContentKind string

const (
	// KindEntry is a structured content entry.
	KindEntry ContentKind = "Entry"

	// KindAsset is a media asset such as an image or file.
	KindAsset ContentKind = "Asset"
)

// Reserved record keys. These always carry item metadata and take
// precedence over user fields with the same name.
const (
	FieldObjectID    = "objectID"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldType        = "type"
	FieldContentType = "contentType"
)

// ContentItem is a published item as delivered by the content store.
type ContentItem struct {
	// ID is stable across versions of the same item.
	ID string

	// Kind is Entry or Asset.
	Kind ContentKind

	// TypeID is the content model identifier (e.g. "post").
	// Empty for assets.
	TypeID string

	// CreatedAt is when the item was first published.
	CreatedAt time.Time

	// UpdatedAt is when the item was last published.
	UpdatedAt time.Time

	// Fields holds the user-defined attributes. Values may be nested.
	Fields map[string]any
}

// IndexRecord is the flattened, search-ready form of a ContentItem.
// It always carries an objectID key.
type IndexRecord map[string]any

// ObjectID returns the record's primary key.
func (r IndexRecord) ObjectID() string {
	id, _ := r[FieldObjectID].(string)
	return id
}

// Record flattens the item into an IndexRecord.
// User fields are copied first, then metadata is written over them so
// objectID and the other reserved keys cannot be shadowed.
func (c *ContentItem) Record() IndexRecord {
	rec := make(IndexRecord, len(c.Fields)+5)
	for k, v := range c.Fields {
		rec[k] = v
	}

	rec[FieldObjectID] = c.ID
	rec[FieldType] = string(c.Kind)
	rec[FieldContentType] = c.TypeID
	if !c.CreatedAt.IsZero() {
		rec[FieldCreatedAt] = formatTimestamp(c.CreatedAt)
	} else {
		delete(rec, FieldCreatedAt)
	}
	if !c.UpdatedAt.IsZero() {
		rec[FieldUpdatedAt] = formatTimestamp(c.UpdatedAt)
	} else {
		delete(rec, FieldUpdatedAt)
	}
	return rec
}

// formatTimestamp renders times the way the content store does.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
