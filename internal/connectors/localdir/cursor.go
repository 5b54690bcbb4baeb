package localdir

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// ErrInvalidCursor indicates a token that could not be decoded.
var ErrInvalidCursor = errors.New("localdir: invalid cursor")

// Cursor records the content hash of every item seen at a point in time.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// Items maps item id to the SHA-256 of its file.
	Items map[string]string `json:"items"`
}

// NewCursor creates a new empty cursor.
func NewCursor() *Cursor {
	return &Cursor{
		Version: CursorVersion,
		Items:   make(map[string]string),
	}
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c *Cursor) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor deserializes a cursor from a token.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(), nil
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}
	if cursor.Version != CursorVersion {
		return nil, ErrInvalidCursor
	}

	if cursor.Items == nil {
		cursor.Items = make(map[string]string)
	}
	return &cursor, nil
}
