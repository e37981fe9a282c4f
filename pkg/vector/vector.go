// Package vector implements the Priority Vector algebra of IEEE 802.1Q: the
// totally ordered tuple used to elect roots and designated bridges, for both
// the CIST and MSTI spanning trees.
package vector

import "github.com/mstpgo/mstpd/pkg/model"

// Comparison is the result of comparing two priority vectors.
type Comparison int

const (
	Inferior Comparison = -1
	Same     Comparison = 0
	Superior Comparison = 1
)

// Vector is a priority vector. For the CIST, RootID and ExternalPathCost are
// meaningful; for an MSTI they are always zero and excluded from comparison,
// ("For MSTIs the ExternalPathCost/RegionalRootID fields are
// absent" — modelled here as "always equal, hence skipped" rather than a
// second type, so one comparator serves both trees).
type Vector struct {
	IsCIST             bool
	RootID             model.BridgeIdentifier // CIST only
	ExternalPathCost   uint32                 // CIST only
	RegionalRootID     model.BridgeIdentifier
	InternalPathCost   uint32
	DesignatedBridgeID model.BridgeIdentifier
	DesignatedPortID   model.PortIdentifier
}

// Compare implements the lexicographic ordering of IEEE 802.1Q: for the
// CIST, RootID, ExternalPathCost, RegionalRootID, InternalPathCost,
// DesignatedBridgeID, DesignatedPortID in that order; for MSTIs the first two
// fields are skipped. Lower is better (Superior).
func Compare(a, b Vector) Comparison {
	if a.IsCIST && b.IsCIST {
		if c := a.RootID.Compare(b.RootID); c != 0 {
			return fromInt(c)
		}
		if c := compareUint32(a.ExternalPathCost, b.ExternalPathCost); c != 0 {
			return fromInt(c)
		}
	}
	if c := a.RegionalRootID.Compare(b.RegionalRootID); c != 0 {
		return fromInt(c)
	}
	if c := compareUint32(a.InternalPathCost, b.InternalPathCost); c != 0 {
		return fromInt(c)
	}
	if c := a.DesignatedBridgeID.Compare(b.DesignatedBridgeID); c != 0 {
		return fromInt(c)
	}
	if c := a.DesignatedPortID.Compare(b.DesignatedPortID); c != 0 {
		return fromInt(c)
	}
	return Same
}

// Better reports whether a is strictly preferable to b (Compare == Superior,
// i.e. a sorts before b).
func Better(a, b Vector) bool {
	return Compare(a, b) == Superior
}

// BetterOrSame reports whether a is at least as good as b. Used by role
// selection's designated-port test ("designatedPriority <= rootPathPriority",
// IEEE 802.1Q) where a tie must still count as acceptable.
func BetterOrSame(a, b Vector) bool {
	c := Compare(a, b)
	return c == Superior || c == Same
}

func compareUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func fromInt(c int) Comparison {
	switch {
	case c < 0:
		return Superior
	case c > 0:
		return Inferior
	default:
		return Same
	}
}

// AddPathCost returns a copy of v with the supplied cost added to the
// appropriate path-cost field (external for the CIST, internal otherwise),
// as used when computing a candidate root-path vector across a link.
func (v Vector) AddPathCost(cost uint32) Vector {
	out := v
	if v.IsCIST {
		out.ExternalPathCost += cost
	}
	out.InternalPathCost += cost
	return out
}

// ZeroPathCost returns a copy of v with its path-cost component(s) cleared,
// as used when forming a designated-port candidate vector
// ("with path-cost components zeroed", IEEE 802.1Q).
func (v Vector) ZeroPathCost() Vector {
	out := v
	out.ExternalPathCost = 0
	out.InternalPathCost = 0
	return out
}
