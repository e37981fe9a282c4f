//go:build !linux
// +build !linux

package bpdutx

func openPlatform(ifindex int, srcMAC [6]byte, rx RxFunc) (PortSocket, error) {
	return nil, ErrUnsupportedPlatform
}
