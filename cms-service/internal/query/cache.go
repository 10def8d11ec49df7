package query

import "context"

// ViewCache is the read-through cache in front of the store. A nil cache
// sends every read to the store.
type ViewCache[T any] interface {
	Get(ctx context.Context, id string) (*T, bool)
	Set(ctx context.Context, id string, value *T)
}
