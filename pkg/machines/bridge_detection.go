package machines

import "github.com/mstpgo/mstpd/pkg/model"

// BridgeDetection is BDM per IEEE 802.1Q: it decides operEdge. A port configured
// adminEdge stays (or becomes) an edge port until any BPDU arrives, at which
// point it reverts to non-edge within one tick; a port relying on
// autoEdge instead becomes an edge port once edgeDelayWhile has run out with
// no BPDU seen.
type BridgeDetection struct {
	Port *model.Port
}

func (m *BridgeDetection) Step() bool {
	p := m.Port
	if !p.PortEnabled {
		if p.OperEdge != p.AdminEdge {
			p.OperEdge = p.AdminEdge
			return true
		}
		return false
	}
	if p.EdgeDelayWhile > 0 {
		// A BPDU was heard recently: a bridge is attached.
		if p.OperEdge {
			p.OperEdge = false
			return true
		}
		return false
	}
	switch {
	case p.AdminEdge && !p.OperEdge:
		p.OperEdge = true
		return true
	case p.AutoEdge && !p.AdminEdge && !p.OperEdge:
		p.OperEdge = true
		return true
	case !p.AdminEdge && !p.AutoEdge && p.OperEdge:
		p.OperEdge = false
		return true
	default:
		return false
	}
}
