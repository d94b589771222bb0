package platform

import "golang.org/x/sys/unix"

var machines = map[string]string{
	"x86_64":  "amd64",
	"aarch64": "arm64",
	"armv7l":  "arm",
	"i686":    "386",
	"riscv64": "riscv64",
	"ppc64le": "ppc64le",
	"s390x":   "s390x",
}

// nativeArch reports the kernel's machine name, which differs from GOARCH
// for 32-bit binaries on 64-bit kernels.
func nativeArch() (string, bool) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", false
	}
	arch, ok := machines[unix.ByteSliceToString(u.Machine[:])]
	return arch, ok
}
