//go:build !windows

package tailer

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number so rotation can be detected even when
// the new file has the same size as the old one momentarily.
func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
