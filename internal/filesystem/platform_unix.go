//go:build !windows

package filesystem

import (
	"os"
	"syscall"
	"time"
)

// statTimes returns the change time and access time from FileInfo (Unix).
// Linux has no portable birth time, so ctime stands in for creation time.
func statTimes(info os.FileInfo) (created, accessed time.Time) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	created = time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	accessed = time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
	return created, accessed
}
