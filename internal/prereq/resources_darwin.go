//go:build darwin

package prereq

import "golang.org/x/sys/unix"

func freeDiskBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

func totalMemoryBytes() (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}
