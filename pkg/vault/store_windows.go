//go:build windows

package vault

// warnIfInsecurePermissions is a no-op on windows: unix permission bits
// don't apply, and there is no ACL-based equivalent check here.
func warnIfInsecurePermissions(path string) {}
