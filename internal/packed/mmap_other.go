//go:build !unix

package packed

// Platforms without anonymous mmap fall back to the Go heap; the large-page
// flag still round-trips through the serialized image.
func mapAnonymous(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmap(b []byte) error {
	return nil
}
