//go:build unix

package cpu

import "golang.org/x/sys/unix"

// mapMemory returns zeroed anonymous memory outside the Go heap, so device
// addresses stay stable and can be stored in pointer arrays.
func mapMemory(bytes int) ([]byte, error) {
	return unix.Mmap(-1, 0, bytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapMemory(data []byte) error {
	return unix.Munmap(data)
}
