package driven

import (
	"context"
	"encoding/json"
)

// Namespace identifies an isolated artifact keyspace. Two stores with
// different namespaces never see each other's keys.
type Namespace struct {
	Store string
	Name  string
}

// String returns "store/name".
func (n Namespace) String() string {
	return n.Store + "/" + n.Name
}

// ResearchHistory is the namespace holding completed research results. It is
// disjoint from SettingsStoreName so clearing history never touches settings.
var ResearchHistory = Namespace{Store: "research", Name: "history"}

// ArtifactStore defines the driven port for a namespaced key-value store.
// Values are opaque JSON documents.
type ArtifactStore interface {
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear removes every key in the namespace.
	Clear(ctx context.Context) error

	// Keys lists the keys in the namespace. Callers must not rely on order.
	Keys(ctx context.Context) ([]string, error)
}
