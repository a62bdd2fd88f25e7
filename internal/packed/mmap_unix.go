//go:build unix

package packed

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapAnonymous allocates size bytes from an anonymous private mapping and
// advises the kernel to back it with huge pages where supported.
func mapAnonymous(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	adviseHugePages(b)
	return b, nil
}

func unmap(b []byte) error {
	return unix.Munmap(b)
}
