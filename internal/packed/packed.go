// Package packed implements a fixed-capacity array of unsigned integers
// stored at an arbitrary bit width (1-56 bits per entry). Entries are
// bit-addressed onto a byte buffer with no per-entry padding; every access
// reads or writes a single little-endian 8-byte window containing the
// entry's bits. The buffer is over-allocated by 7 guard bytes so the widest
// window read never runs past the allocation.
package packed

import (
	"encoding/binary"
	"fmt"
	"io"

	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
)

// MaxBitsPerEntry is the widest entry a single 8-byte window can service:
// a 56-bit value shifted by up to 7 bits still fits in 64 bits.
const MaxBitsPerEntry = 56

const guardBytes = 7

// Array is a fixed-capacity packed integer array. It has a single owner;
// concurrent writers must be serialized by the caller.
type Array struct {
	capacity     uint64
	bitsPerEntry uint64
	mask         uint64
	largePages   bool
	data         []byte
	mapped       bool
}

func bufferByteCount(capacity, bitsPerEntry uint64) uint64 {
	return (capacity*bitsPerEntry+7)/8 + guardBytes
}

// New creates an Array holding capacity entries of bitsPerEntry bits each.
// When largePages is set the buffer comes from an anonymous virtual-memory
// mapping instead of the Go heap.
func New(capacity, bitsPerEntry uint64, largePages bool) (*Array, error) {
	if capacity == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "packed.New", "capacity must be positive")
	}
	if bitsPerEntry == 0 || bitsPerEntry > MaxBitsPerEntry {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "packed.New",
			"bitsPerEntry must be in 1..%d, got %d", MaxBitsPerEntry, bitsPerEntry)
	}

	size := bufferByteCount(capacity, bitsPerEntry)
	a := &Array{
		capacity:     capacity,
		bitsPerEntry: bitsPerEntry,
		mask:         (uint64(1) << bitsPerEntry) - 1,
		largePages:   largePages,
	}
	if largePages {
		data, err := mapAnonymous(int(size))
		if err != nil {
			return nil, fmt.Errorf("packed: large-page allocation of %d bytes: %w", size, err)
		}
		a.data = data
		a.mapped = true
	} else {
		a.data = make([]byte, size)
	}
	return a, nil
}

// Capacity returns the number of entries.
func (a *Array) Capacity() uint64 {
	return a.capacity
}

// BitsPerEntry returns the configured entry width in bits.
func (a *Array) BitsPerEntry() uint64 {
	return a.bitsPerEntry
}

// UsesLargePages reports whether the buffer is virtual-memory mapped.
func (a *Array) UsesLargePages() bool {
	return a.largePages
}

// SizeInBytes returns the byte size of the backing buffer, guard included.
func (a *Array) SizeInBytes() uint64 {
	return uint64(len(a.data))
}

// Get returns the value stored at index. It panics if index is out of
// range; an out-of-range index signals a defect in the row-layout logic
// above this package, not a data problem.
func (a *Array) Get(index uint64) uint64 {
	if index >= a.capacity {
		panic(fmt.Sprintf("packed: Get index %d out of range for capacity %d", index, a.capacity))
	}
	bit := index * a.bitsPerEntry
	w := binary.LittleEndian.Uint64(a.data[bit>>3:])
	return (w >> (bit & 7)) & a.mask
}

// Set stores value at index, truncating value to bitsPerEntry bits. It
// panics if index is out of range.
func (a *Array) Set(index, value uint64) {
	if index >= a.capacity {
		panic(fmt.Sprintf("packed: Set index %d out of range for capacity %d", index, a.capacity))
	}
	bit := index * a.bitsPerEntry
	off := bit >> 3
	shift := bit & 7
	w := binary.LittleEndian.Uint64(a.data[off:])
	w = w&^(a.mask<<shift) | (value&a.mask)<<shift
	binary.LittleEndian.PutUint64(a.data[off:], w)
}

// Serialize writes the binary image of the array: capacity, bits-per-entry,
// the large-page flag, then the raw backing bytes. The format carries no
// version field; changes require a new reader.
func (a *Array) Serialize(w io.Writer) error {
	var hdr [17]byte
	binary.LittleEndian.PutUint64(hdr[0:8], a.capacity)
	binary.LittleEndian.PutUint64(hdr[8:16], a.bitsPerEntry)
	if a.largePages {
		hdr[16] = 1
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("packed: writing header: %w", err)
	}
	if _, err := w.Write(a.data); err != nil {
		return fmt.Errorf("packed: writing buffer: %w", err)
	}
	return nil
}

// Deserialize reconstructs an Array from a binary image produced by
// Serialize. The round trip reproduces identical Get results for every
// index.
func Deserialize(r io.Reader) (*Array, error) {
	var hdr [17]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("packed: reading header: %w", err)
	}
	capacity := binary.LittleEndian.Uint64(hdr[0:8])
	bitsPerEntry := binary.LittleEndian.Uint64(hdr[8:16])
	largePages := hdr[16] != 0

	a, err := New(capacity, bitsPerEntry, largePages)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, a.data); err != nil {
		a.Close()
		return nil, fmt.Errorf("packed: reading buffer: %w", err)
	}
	return a, nil
}

// Close releases the backing buffer when it is virtual-memory mapped.
// The array must not be used afterwards.
func (a *Array) Close() error {
	if !a.mapped || a.data == nil {
		return nil
	}
	data := a.data
	a.data = nil
	a.mapped = false
	return unmap(data)
}
