package app

import "golang.org/x/sys/unix"

// diskUsage reports the filesystem holding the TLE cache, or nil when path
// cannot be inspected.
func diskUsage(path string) map[string]any {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	avail := st.Bavail * bsize
	return map[string]any{
		"path":            path,
		"total_bytes":     total,
		"used_bytes":      total - st.Bfree*bsize,
		"available_bytes": avail,
	}
}
