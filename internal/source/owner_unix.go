//go:build unix

package source

import (
	"io/fs"
	"os/user"
	"strconv"
	"syscall"
)

// ownerOf returns the user name owning the file, or its uid when the user
// is unknown
func ownerOf(info fs.FileInfo) string {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ""
	}
	uid := strconv.FormatUint(uint64(st.Uid), 10)
	if u, err := user.LookupId(uid); err == nil {
		return u.Username
	}
	return uid
}
