package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrNotNumber = errors.New("store: field is not a number")
	ErrNotArray  = errors.New("store: field is not an array")
)

// Store is a document store where every primitive is atomic with respect to
// the single field it addresses. A document is named by doc, a field by a
// dotted path inside it. Nothing is atomic across fields.
type Store interface {
	Get(ctx context.Context, doc, path string) (json.RawMessage, bool, error)
	Set(ctx context.Context, doc, path string, value json.RawMessage) error
	SetIfAbsent(ctx context.Context, doc, path string, value json.RawMessage) (bool, error)
	// Increment treats a missing field as 0 and returns the new value.
	Increment(ctx context.Context, doc, path string, delta float64) (float64, error)
	// Append treats a missing field as an empty array and returns the new length.
	Append(ctx context.Context, doc, path string, value json.RawMessage) (int, error)
	// Delete removes path and every field nested under it. An empty path
	// removes the whole document.
	Delete(ctx context.Context, doc, path string) error
	Exists(ctx context.Context, doc, path string) (bool, error)
	Len(ctx context.Context, doc, path string) (int, error)
}

func Join(parts ...string) string {
	return strings.Join(parts, ".")
}

func under(field, path string) bool {
	return path == "" || field == path || strings.HasPrefix(field, path+".")
}

func arrayLen(raw json.RawMessage) (int, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return 0, ErrNotArray
	}
	return len(arr), nil
}
