//go:build windows

package filesystem

import (
	"os"
	"syscall"
	"time"
)

// statTimes returns the creation time and access time from FileInfo (Windows).
func statTimes(info os.FileInfo) (created, accessed time.Time) {
	stat, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	created = time.Unix(0, stat.CreationTime.Nanoseconds())
	accessed = time.Unix(0, stat.LastAccessTime.Nanoseconds())
	return created, accessed
}
