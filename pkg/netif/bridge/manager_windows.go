//go:build windows
// +build windows

package bridge

import "github.com/mstpgo/mstpd/pkg/model"

// WindowsManager is a stub: the daemon drives Linux kernel bridges only, but
// the package still builds (and the CLI still links) on other systems.
type WindowsManager struct{}

func newWindowsManager() (*WindowsManager, error) {
	return &WindowsManager{}, nil
}

func (m *WindowsManager) Bridges() ([]BridgeInfo, error)            { return nil, ErrNotSupported }
func (m *WindowsManager) Ports(int) ([]PortInfo, error)             { return nil, ErrNotSupported }
func (m *WindowsManager) Watch(chan<- Event, <-chan struct{}) error { return ErrNotSupported }
func (m *WindowsManager) SetPortState(string, model.ForwardingState) error {
	return ErrNotSupported
}
func (m *WindowsManager) SetMSTPortState(int, uint16, model.ForwardingState) error {
	return ErrNotSupported
}
func (m *WindowsManager) EnableMST(int) error   { return ErrNotSupported }
func (m *WindowsManager) FlushFDB(string) error { return ErrNotSupported }
func (m *WindowsManager) SpeedDuplex(string) (uint32, model.Duplex, error) {
	return 0, model.DuplexUnknown, ErrNotSupported
}
func (m *WindowsManager) SetAgeingTime(string, uint32) error { return ErrNotSupported }
