package ingest

import (
	"sync"
)

const mapBuckets = 64

// documentMap is the concurrency-safe DocId-to-location mapping. It is
// sharded into fixed buckets so reads rarely contend; each entry is the
// single source of truth for both Contains and GetHandle.
type documentMap struct {
	buckets [mapBuckets]mapBucket
}

type mapBucket struct {
	mu   sync.RWMutex
	docs map[DocID]DocumentHandle
}

func newDocumentMap() *documentMap {
	m := &documentMap{}
	for i := range m.buckets {
		m.buckets[i].docs = make(map[DocID]DocumentHandle)
	}
	return m
}

func (m *documentMap) bucket(id DocID) *mapBucket {
	return &m.buckets[splitmix64(uint64(id))%mapBuckets]
}

// insert publishes the handle; it reports false if the id is already live.
func (m *documentMap) insert(id DocID, h DocumentHandle) bool {
	b := m.bucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.docs[id]; exists {
		return false
	}
	b.docs[id] = h
	return true
}

func (m *documentMap) get(id DocID) (DocumentHandle, bool) {
	b := m.bucket(id)
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.docs[id]
	return h, ok
}

// remove unpublishes the id and returns the handle it mapped to.
func (m *documentMap) remove(id DocID) (DocumentHandle, bool) {
	b := m.bucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.docs[id]
	if ok {
		delete(b.docs, id)
	}
	return h, ok
}
