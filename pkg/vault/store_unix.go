//go:build !windows

package vault

import (
	"golang.org/x/sys/unix"

	"github.com/keyvault/keyvault/internal/hostlog"
)

// warnIfInsecurePermissions re-stats path after commitDocument's rename
// and warns if the result isn't exactly 0600. os.Chmod can silently no-op
// on some non-Linux unix filesystems (certain FUSE/network mounts ignore
// the requested bits), so this re-checks with a direct stat rather than
// trusting the earlier os.Chmod call succeeded in the way it reported.
func warnIfInsecurePermissions(path string) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return
	}
	if mode := stat.Mode & 0777; mode != 0600 {
		hostlog.Warnf("vault root document %s has permissions %o, want 0600", path, mode)
	}
}
