//go:build unix && !linux

package packed

func adviseHugePages(b []byte) {}
