package settings

import "runtime"

// PlatformStateDir returns the controller's home directory for the running
// OS. Unknown platforms get the Linux location.
func PlatformStateDir() string {
	return stateDirFor(runtime.GOOS)
}

func stateDirFor(goos string) string {
	switch goos {
	case "darwin":
		return "/Library/Application Support/ZeroTier/One"
	case "windows":
		return `C:\ProgramData\ZeroTier\One`
	case "freebsd", "openbsd", "netbsd":
		return "/var/db/zerotier-one"
	default:
		return "/var/lib/zerotier-one"
	}
}
