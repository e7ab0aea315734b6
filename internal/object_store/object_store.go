package object_store

import "context"

// Handle is the opaque location returned by Put and accepted by Get.
type Handle string

// ObjectStore is one storage node's durable key to bytes map. Entries are
// write-once: a Put for a key that already exists keeps the original bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (Handle, error)
	Get(ctx context.Context, handle Handle) ([]byte, error)
	Exists(ctx context.Context, handle Handle) bool
	Delete(ctx context.Context, handle Handle) error
	Health(ctx context.Context) error
}

// Resolver finds the object store that backs a node.
type Resolver interface {
	StoreFor(nodeID string) (ObjectStore, bool)
}
