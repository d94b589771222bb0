//go:build !darwin && !linux

package platform

func nativeArch() (string, bool) {
	return "", false
}
