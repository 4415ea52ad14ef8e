package backend

// Has reports whether the named backend is compiled into this binary.
func Has(name string) bool {
	switch name {
	case CUDA:
		return cudaEnabled
	default:
		return name == CPU
	}
}

// Available lists the compiled-in backends in the order auto tries them.
func Available() []string {
	if cudaEnabled {
		return []string{CUDA, CPU}
	}
	return []string{CPU}
}
