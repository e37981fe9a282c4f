package machines

import "github.com/mstpgo/mstpd/pkg/model"

// PortProtocolMigration is PPM per IEEE 802.1Q: it tracks sendRSTP from the version of
// the neighbour's last BPDU, debounced by the single mdelayWhile timer
// (MigrateTime, fixed 3s) so a burst of legacy frames cannot flap the port
// between RSTP/MSTP and STP encoding every tick.
type PortProtocolMigration struct {
	Bridge *model.Bridge
	Port   *model.Port
}

func (m *PortProtocolMigration) Step() bool {
	p := m.Port
	if !p.PortEnabled {
		if p.MDelayWhile != uint16(m.Bridge.MigrateTime) || !p.SendRSTP {
			p.MDelayWhile = uint16(m.Bridge.MigrateTime)
			p.SendRSTP = m.Bridge.Version != model.VersionSTP
			return true
		}
		return false
	}
	switch {
	case p.McheckPending:
		p.McheckPending = false
		p.SendRSTP = m.Bridge.Version != model.VersionSTP
		p.MDelayWhile = uint16(m.Bridge.MigrateTime)
		return true
	case p.RcvdSTP && p.MDelayWhile == 0:
		p.SendRSTP = false
		p.MDelayWhile = uint16(m.Bridge.MigrateTime)
		p.RcvdSTP = false
		return true
	case p.RcvdRSTP && p.MDelayWhile == 0 && !p.SendRSTP && m.Bridge.Version != model.VersionSTP:
		p.SendRSTP = true
		p.MDelayWhile = uint16(m.Bridge.MigrateTime)
		p.RcvdRSTP = false
		return true
	default:
		return false
	}
}
