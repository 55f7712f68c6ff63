package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no document exists for the given key.
var ErrNotFound = errors.New("document not found")

// Store is durable key-value persistence for JSON documents addressed by
// composite key (guild, collection, document). No cross-document transaction
// is assumed available; every multi-step mutation in the core is designed to
// be retried by re-deriving full desired state.
type Store interface {
	// Get loads the document into v. Returns ErrNotFound when missing.
	Get(ctx context.Context, guildID, collection, docID string, v any) error
	// Put creates or overwrites the document with the JSON encoding of v.
	Put(ctx context.Context, guildID, collection, docID string, v any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, guildID, collection, docID string) error
	// List returns every document in the collection keyed by document ID.
	List(ctx context.Context, guildID, collection string) (map[string]json.RawMessage, error)
}
