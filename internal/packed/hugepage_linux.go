//go:build linux

package packed

import "golang.org/x/sys/unix"

// adviseHugePages requests transparent huge pages for the mapping. Failure
// is harmless; the mapping stays on regular pages.
func adviseHugePages(b []byte) {
	_ = unix.Madvise(b, unix.MADV_HUGEPAGE)
}
