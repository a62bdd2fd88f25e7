package ingest

import (
	"sync"
)

// BlockAllocator supplies fixed-size memory blocks for shard document
// tables. All blocks from one allocator have the same byte size; shards
// size their tables to fit the block.
type BlockAllocator interface {
	Allocate() ([]byte, error)
	Release(block []byte)
	BlockSize() int
}

// sliceBufferAllocator hands out equally sized blocks and pools released
// ones for reuse.
type sliceBufferAllocator struct {
	size int
	pool sync.Pool
}

// NewSliceBufferAllocator creates an allocator producing blocks of
// blockSize bytes.
func NewSliceBufferAllocator(blockSize int) BlockAllocator {
	a := &sliceBufferAllocator{size: blockSize}
	a.pool.New = func() any {
		return make([]byte, blockSize)
	}
	return a
}

func (a *sliceBufferAllocator) Allocate() ([]byte, error) {
	block := a.pool.Get().([]byte)
	clear(block)
	return block, nil
}

func (a *sliceBufferAllocator) Release(block []byte) {
	if len(block) != a.size {
		return
	}
	a.pool.Put(block)
}

func (a *sliceBufferAllocator) BlockSize() int {
	return a.size
}
