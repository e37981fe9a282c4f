package machines

import (
	"github.com/mstpgo/mstpd/pkg/bpdu"
	"github.com/mstpgo/mstpd/pkg/model"
)

// PortTransmit is PTX per IEEE 802.1Q: it honours TxHoldCount (a token bucket reset
// every tick by the Orchestrator) and transmits a single CIST BPDU
// aggregating every MSTI's records whenever newInfoCist or newInfoMsti is
// set on the port. A BPDU is only sent while the CIST PTP's role is
// Designated, or (root port) to acknowledge a TCN.
type PortTransmit struct {
	Bridge *model.Bridge
	Port   *model.Port
	CIST   *model.Tree
	MSTIs  []*model.Tree

	Send func(port *model.Port, frame []byte)
}

func (m *PortTransmit) Step() bool {
	p := m.Port
	if !p.PortEnabled || p.DontTxmt || p.BPDUFilter {
		return false
	}
	cistPTP := m.CIST.Ports[p.Index]
	if cistPTP == nil {
		return false
	}
	if cistPTP.Role != model.RoleDesignated && cistPTP.Role != model.RoleRoot {
		return false
	}
	if !(p.NewInfoCist || p.NewInfoMsti) {
		return false
	}
	if p.TxCount >= int(m.Bridge.TxHoldCount) {
		return false
	}
	m.transmit(cistPTP)
	p.NewInfoCist = false
	p.NewInfoMsti = false
	p.TxCount++
	cistPTP.NewInfo = false
	return true
}

func (m *PortTransmit) transmit(cistPTP *model.PerTreePort) {
	flags := bpdu.Flags(0)
	if cistPTP.TCWhile > 0 {
		flags |= bpdu.FlagTC
	}
	if cistPTP.TCAck {
		flags |= bpdu.FlagTCAck
	}
	if cistPTP.Proposing {
		flags |= bpdu.FlagProposal
	}
	if cistPTP.Agreed {
		flags |= bpdu.FlagAgreement
	}
	if cistPTP.Learning {
		flags |= bpdu.FlagLearning
	}
	if cistPTP.Forwarding {
		flags |= bpdu.FlagForwarding
	}
	flags = flags.WithRole(roleToWire(cistPTP.Role))

	var recs []bpdu.MSTIRecord
	for _, t := range m.MSTIs {
		ptp := t.Ports[m.Port.Index]
		if ptp == nil || !(ptp.Role == model.RoleDesignated || ptp.Role == model.RoleRoot || ptp.Role == model.RoleMaster) {
			continue
		}
		recFlags := bpdu.Flags(0)
		if ptp.TCWhile > 0 {
			recFlags |= bpdu.FlagTC
		}
		recFlags = recFlags.WithRole(roleToWire(ptp.Role))
		recs = append(recs, bpdu.MSTIRecord{
			Flags:            recFlags,
			RegionalRootID:   ptp.Designated.RegionalRootID,
			InternalPathCost: ptp.Designated.InternalPathCost,
			BridgeIDPriority: uint8(t.BridgeID.Priority),
			PortIDPriority:   uint8(ptp.PortID.Priority),
			RemainingHops:    ptp.DesignatedTimes.RemainingHops,
		})
	}

	remainingHops := cistPTP.DesignatedTimes.RemainingHops
	if m.CIST.IsRoot() {
		remainingHops = m.Bridge.MaxHops
	}

	var f bpdu.Frame
	var version uint8
	switch {
	case m.Bridge.Version == model.VersionSTP || !m.Port.SendRSTP:
		version = bpdu.VersionSTP
	case m.Bridge.Version == model.VersionRSTP:
		version = bpdu.VersionRSTP
	default:
		version = bpdu.VersionMSTP
	}

	if version == bpdu.VersionMSTP {
		_ = f.EncodeMST(bpdu.MSTFields{
			ConfigFields: bpdu.ConfigFields{
				Version:          version,
				Flags:            flags,
				Root:             cistPTP.Designated.RootID,
				ExternalPathCost: cistPTP.Designated.ExternalPathCost,
				BridgeID:         cistPTP.Designated.RegionalRootID,
				PortID:           cistPTP.PortID,
				Times:            cistPTP.DesignatedTimes,
			},
			ConfigName:           m.Bridge.MSTConfigName,
			ConfigNameLen:        configNameLen(m.Bridge.MSTConfigName),
			ConfigRevision:       m.Bridge.MSTConfigRevision,
			ConfigDigest:         m.Bridge.Digest,
			InternalRootPathCost: cistPTP.Designated.InternalPathCost,
			CISTBridgeID:         m.CIST.BridgeID,
			RemainingHops:        remainingHops,
			MSTI:                 recs,
		})
	} else {
		f.EncodeConfig(bpdu.ConfigFields{
			Version:          version,
			Flags:            flags,
			Root:             cistPTP.Designated.RootID,
			ExternalPathCost: cistPTP.Designated.ExternalPathCost,
			BridgeID:         cistPTP.Designated.DesignatedBridgeID,
			PortID:           cistPTP.PortID,
			Times:            cistPTP.DesignatedTimes,
		})
	}

	if m.Send != nil {
		m.Send(m.Port, f.Bytes())
	}
}

func configNameLen(name [bpdu.ConfigNameLen]byte) uint8 {
	n := 0
	for _, b := range name {
		if b == 0 {
			break
		}
		n++
	}
	return uint8(n)
}

func roleToWire(r model.Role) bpdu.PortRole {
	switch r {
	case model.RoleRoot:
		return bpdu.PortRoleRoot
	case model.RoleDesignated, model.RoleMaster:
		return bpdu.PortRoleDesignated
	default:
		return bpdu.PortRoleAlternateOrBackup
	}
}
