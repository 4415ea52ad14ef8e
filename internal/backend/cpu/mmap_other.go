//go:build !unix

package cpu

// The Go collector does not move heap objects, and the memory table keeps
// every region reachable until it is freed.
func mapMemory(bytes int) ([]byte, error) {
	return make([]byte, bytes), nil
}

func unmapMemory(data []byte) error {
	return nil
}
