package pagination

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many records a page can hold.
	MaxLimit = 100
)

// Params holds cursor pagination inputs.
type Params struct {
	Limit  int
	Cursor string
}

// Page is one slice of a key-ordered listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds an opaque cursor pointing after key.
func EncodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// ParseCursor decodes the cursor string back into the last seen key.
func ParseCursor(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decode cursor: %w", err)
	}
	if len(decoded) == 0 {
		return "", fmt.Errorf("invalid cursor format")
	}
	return string(decoded), nil
}

// Apply orders items by key and returns the page following params.Cursor.
// items is sorted in place.
func Apply[T any](items []T, key func(T) string, params Params) (Page[T], error) {
	after, err := ParseCursor(params.Cursor)
	if err != nil {
		return Page[T]{}, err
	}
	sort.SliceStable(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })

	start := 0
	if after != "" {
		start = sort.Search(len(items), func(i int) bool { return key(items[i]) > after })
	}
	limit := NormalizeLimit(params.Limit)
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	page := Page[T]{Items: append([]T{}, items[start:end]...)}
	if end < len(items) && end > start {
		page.NextCursor = EncodeCursor(key(items[end-1]))
	}
	return page, nil
}
