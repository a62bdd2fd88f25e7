package ingest

import (
	"sync"

	"github.com/praveenmunagapati/BitFunnel/internal/document"
)

// DocumentCache holds recently ingested documents so diagnostic tooling can
// verify query results against the original posting sets. Bounded FIFO; a
// capacity of zero disables caching.
type DocumentCache struct {
	mu       sync.Mutex
	capacity int
	order    []DocID
	docs     map[DocID]*document.Document
}

// NewDocumentCache creates a cache holding at most capacity documents.
func NewDocumentCache(capacity int) *DocumentCache {
	return &DocumentCache{
		capacity: capacity,
		docs:     make(map[DocID]*document.Document),
	}
}

// Put records an ingested document, evicting the oldest entry when full.
func (c *DocumentCache) Put(id DocID, doc *document.Document) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[id]; !exists {
		for len(c.docs) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.docs, oldest)
		}
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
}

// Get returns the cached document for id, if still present.
func (c *DocumentCache) Get(id DocID) (*document.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	return doc, ok
}

// Len returns the number of cached documents.
func (c *DocumentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Clear discards all cached documents.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.docs = make(map[DocID]*document.Document)
}
