package ingest

import (
	"sync"

	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
)

// FactSet is the registry AssertFact validates against. Facts are named
// bits associated with documents, independent of one another; each
// registered fact claims one row in every shard's fact row region.
type FactSet struct {
	mu       sync.RWMutex
	byName   map[string]FactHandle
	names    []string
	capacity uint32
}

// newFactSet creates a registry with room for capacity facts.
func newFactSet(capacity uint32) *FactSet {
	return &FactSet{
		byName:   make(map[string]FactHandle),
		capacity: capacity,
	}
}

// Register adds a named fact and returns its handle. Registering the same
// name twice returns the existing handle.
func (fs *FactSet) Register(name string) (FactHandle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if h, ok := fs.byName[name]; ok {
		return h, nil
	}
	if uint32(len(fs.names)) >= fs.capacity {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "ingest.RegisterFact",
			"fact row region full (%d facts)", fs.capacity)
	}
	h := FactHandle(len(fs.names))
	fs.byName[name] = h
	fs.names = append(fs.names, name)
	return h, nil
}

// Contains reports whether the handle was issued by this registry.
func (fs *FactSet) Contains(h FactHandle) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return uint32(h) < uint32(len(fs.names))
}

// Name returns the fact's registered name.
func (fs *FactSet) Name(h FactHandle) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if uint32(h) >= uint32(len(fs.names)) {
		return ""
	}
	return fs.names[h]
}

// Count returns the number of registered facts.
func (fs *FactSet) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.names)
}
