package platform

import "golang.org/x/sys/unix"

// nativeArch sees through Rosetta: sysctl.proc_translated is 1 for an amd64
// process running on Apple silicon.
func nativeArch() (string, bool) {
	translated, err := unix.SysctlUint32("sysctl.proc_translated")
	if err != nil {
		return "", false
	}
	if translated == 1 {
		return "arm64", true
	}
	return "", false
}
