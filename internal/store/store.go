// Package store persists small whole-value documents (node registry,
// preferences) either as JSON files or as rows in PostgreSQL.
package store

import "context"

// KV loads and saves whole values by key. Load reports false when the key
// has never been saved.
type KV interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
}
