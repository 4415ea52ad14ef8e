//go:build linux

package cpu

import "golang.org/x/sys/unix"

func systemMemory() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return defaultSystemMemory
	}
	return int64(info.Totalram) * int64(info.Unit)
}
