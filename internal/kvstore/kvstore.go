// Package kvstore defines the generic sorted key-value collaborator the
// vault's persistence maps onto: items addressed by a partition key and a
// sort key, with range scans over a sort-key prefix. Implementations live
// in the memory, dynamo and postgres subpackages.
package kvstore

import (
	"context"
	"encoding/base64"
	"time"
)

// Key addresses one item: a partition key scoping all records of one
// account, and a sort key encoding the record kind.
type Key struct {
	PK string
	SK string
}

// Item is one stored record's attributes. Implementations return the pk
// and sk as "pk"/"sk" attributes alongside the payload fields.
type Item map[string]any

// Table is one logical table of the external key-value collaborator.
//
// Failures of the underlying store are reported wrapped around
// common.ErrStoreUnavailable; a missing item is common.ErrNotFound.
// Retry policy belongs to the caller, not to implementations.
type Table interface {
	// Get fetches one item.
	Get(ctx context.Context, key Key) (Item, error)

	// Put writes an item, overwriting any existing one under key.
	Put(ctx context.Context, key Key, item Item) error

	// Update merges the given top-level field assignments into an
	// existing item.
	Update(ctx context.Context, key Key, assign Item) error

	// BatchGet fetches multiple items at once. Missing keys are simply
	// absent from the result; order is not guaranteed.
	BatchGet(ctx context.Context, keys []Key) ([]Item, error)

	// QueryByPrefix returns the items of one partition whose sort key
	// starts with skPrefix, in ascending sort-key order. limit <= 0
	// means no limit.
	QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int) ([]Item, error)

	// Delete removes one item. Deleting a missing item is not an error.
	Delete(ctx context.Context, key Key) error
}

// The coercion helpers below absorb the representational differences
// between backends: numbers come back as int64 from the memory table but
// float64 from DynamoDB and JSONB, and byte slices survive as []byte in
// DynamoDB but as base64 strings through JSONB.

func AsString(v any) string {
	s, _ := v.(string)
	return s
}

func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func AsInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func AsInt64Slice(v any) []int64 {
	switch s := v.(type) {
	case []int64:
		out := make([]int64, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]int64, 0, len(s))
		for _, e := range s {
			out = append(out, AsInt64(e))
		}
		return out
	}
	return nil
}

func AsBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		out := make([]byte, len(b))
		copy(out, b)
		return out
	case string:
		decoded, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil
		}
		return decoded
	}
	return nil
}

// AsTime parses an RFC 3339 attribute; the zero time on absence or
// malformed input.
func AsTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime renders a timestamp the way every backend stores it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
