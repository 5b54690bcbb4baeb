package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContentItem_Record(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	updated := time.Date(2024, 3, 2, 10, 0, 0, 500_000_000, time.UTC)

	item := ContentItem{
		ID:        "a1",
		Kind:      KindEntry,
		TypeID:    "post",
		CreatedAt: created,
		UpdatedAt: updated,
		Fields: map[string]any{
			"title": "Hello",
			"tags":  []any{"x", "y"},
		},
	}

	rec := item.Record()

	assert.Equal(t, "a1", rec.ObjectID())
	assert.Equal(t, "Hello", rec["title"])
	assert.Equal(t, []any{"x", "y"}, rec["tags"])
	assert.Equal(t, "Entry", rec[FieldType])
	assert.Equal(t, "post", rec[FieldContentType])
	assert.Equal(t, "2024-03-01T09:30:00.000Z", rec[FieldCreatedAt])
	assert.Equal(t, "2024-03-02T10:00:00.500Z", rec[FieldUpdatedAt])
}

func TestContentItem_Record_MetadataWinsOverFields(t *testing.T) {
	item := ContentItem{
		ID:     "a1",
		Kind:   KindEntry,
		TypeID: "post",
		Fields: map[string]any{
			"objectID":    "spoofed",
			"type":        "nope",
			"contentType": "nope",
			"createdAt":   "yesterday",
		},
	}

	rec := item.Record()

	assert.Equal(t, "a1", rec.ObjectID())
	assert.Equal(t, "Entry", rec[FieldType])
	assert.Equal(t, "post", rec[FieldContentType])
	_, hasCreated := rec[FieldCreatedAt]
	assert.False(t, hasCreated, "zero timestamps are omitted, never taken from fields")
}

func TestContentItem_Record_DoesNotAliasFields(t *testing.T) {
	item := ContentItem{ID: "a1", Kind: KindAsset, Fields: map[string]any{"title": "x"}}

	rec := item.Record()
	rec["title"] = "changed"

	assert.Equal(t, "x", item.Fields["title"])
	assert.Equal(t, "", rec[FieldContentType])
}

func TestContentItem_Record_NilFields(t *testing.T) {
	item := ContentItem{ID: "a1", Kind: KindEntry}

	rec := item.Record()

	assert.Equal(t, "a1", rec.ObjectID())
	assert.Len(t, rec, 3)
}

func TestIndexRecord_ObjectID_Missing(t *testing.T) {
	assert.Equal(t, "", IndexRecord{}.ObjectID())
	assert.Equal(t, "", IndexRecord{FieldObjectID: 42}.ObjectID())
}
