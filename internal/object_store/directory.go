package object_store

import (
	"sort"
	"sync"
)

// Directory maps node ids to their object stores.
type Directory struct {
	mu     sync.RWMutex
	stores map[string]ObjectStore
}

func NewDirectory() *Directory {
	return &Directory{stores: make(map[string]ObjectStore)}
}

func (d *Directory) Attach(nodeID string, store ObjectStore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stores[nodeID] = store
}

func (d *Directory) Detach(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.stores, nodeID)
}

func (d *Directory) StoreFor(nodeID string) (ObjectStore, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	store, ok := d.stores[nodeID]
	return store, ok
}

func (d *Directory) NodeIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.stores))
	for id := range d.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var _ Resolver = (*Directory)(nil)
