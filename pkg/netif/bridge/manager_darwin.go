//go:build darwin
// +build darwin

package bridge

import "github.com/mstpgo/mstpd/pkg/model"

// DarwinManager is a stub: the daemon drives Linux kernel bridges only, but
// the package still builds (and the CLI still links) on other systems.
type DarwinManager struct{}

func newDarwinManager() (*DarwinManager, error) {
	return &DarwinManager{}, nil
}

func (m *DarwinManager) Bridges() ([]BridgeInfo, error)            { return nil, ErrNotSupported }
func (m *DarwinManager) Ports(int) ([]PortInfo, error)             { return nil, ErrNotSupported }
func (m *DarwinManager) Watch(chan<- Event, <-chan struct{}) error { return ErrNotSupported }
func (m *DarwinManager) SetPortState(string, model.ForwardingState) error {
	return ErrNotSupported
}
func (m *DarwinManager) SetMSTPortState(int, uint16, model.ForwardingState) error {
	return ErrNotSupported
}
func (m *DarwinManager) EnableMST(int) error   { return ErrNotSupported }
func (m *DarwinManager) FlushFDB(string) error { return ErrNotSupported }
func (m *DarwinManager) SpeedDuplex(string) (uint32, model.Duplex, error) {
	return 0, model.DuplexUnknown, ErrNotSupported
}
func (m *DarwinManager) SetAgeingTime(string, uint32) error { return ErrNotSupported }
