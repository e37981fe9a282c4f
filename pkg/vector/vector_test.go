package vector

import (
	"net"
	"testing"

	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/stretchr/testify/require"
)

func mac(b byte) net.HardwareAddr { return net.HardwareAddr{0, 0, 0, 0, 0, b} }

func bid(prio uint16, m byte) model.BridgeIdentifier {
	return model.NewBridgeIdentifier(prio, mac(m))
}

func TestCompareRootIDDominates(t *testing.T) {
	low := Vector{IsCIST: true, RootID: bid(0, 1), DesignatedBridgeID: bid(0, 1)}
	high := Vector{IsCIST: true, RootID: bid(4096, 2), DesignatedBridgeID: bid(0, 1)}
	require.Equal(t, Superior, Compare(low, high))
	require.Equal(t, Inferior, Compare(high, low))
}

func TestCompareFallsThroughFields(t *testing.T) {
	base := Vector{IsCIST: true, RootID: bid(0, 1)}
	cheaper := base
	cheaper.ExternalPathCost = 10
	costlier := base
	costlier.ExternalPathCost = 20
	require.Equal(t, Superior, Compare(cheaper, costlier))
}

func TestCompareMSTISkipsCISTFields(t *testing.T) {
	a := Vector{RegionalRootID: bid(0, 1), DesignatedBridgeID: bid(0, 1)}
	b := Vector{RegionalRootID: bid(0, 1), DesignatedBridgeID: bid(0, 1)}
	// CIST-only fields differ but must not affect an MSTI comparison.
	a.RootID = bid(4096, 9)
	b.RootID = bid(0, 1)
	require.Equal(t, Same, Compare(a, b))
}

func TestTotalOrder(t *testing.T) {
	// Compare must be reflexive, antisymmetric, and transitive over a small adversarial corpus.
	vs := []Vector{
		{IsCIST: true, RootID: bid(0, 1), DesignatedBridgeID: bid(0, 1)},
		{IsCIST: true, RootID: bid(0, 1), DesignatedBridgeID: bid(0, 2)},
		{IsCIST: true, RootID: bid(4096, 1), DesignatedBridgeID: bid(0, 1)},
		{IsCIST: true, RootID: bid(0, 1), ExternalPathCost: 5, DesignatedBridgeID: bid(0, 1)},
	}
	for _, v := range vs {
		require.Equal(t, Same, Compare(v, v), "reflexive")
	}
	for _, a := range vs {
		for _, b := range vs {
			if Compare(a, b) == Superior {
				require.Equal(t, Inferior, Compare(b, a), "antisymmetric")
			}
		}
	}
	for _, a := range vs {
		for _, b := range vs {
			for _, c := range vs {
				if Compare(a, b) == Superior && Compare(b, c) == Superior {
					require.Equal(t, Superior, Compare(a, c), "transitive")
				}
			}
		}
	}
}

func TestAddAndZeroPathCost(t *testing.T) {
	cist := Vector{IsCIST: true}
	cist = cist.AddPathCost(7)
	require.EqualValues(t, 7, cist.ExternalPathCost)
	require.EqualValues(t, 7, cist.InternalPathCost)
	cist = cist.ZeroPathCost()
	require.Zero(t, cist.ExternalPathCost)
	require.Zero(t, cist.InternalPathCost)

	msti := Vector{IsCIST: false}
	msti = msti.AddPathCost(3)
	require.Zero(t, msti.ExternalPathCost)
	require.EqualValues(t, 3, msti.InternalPathCost)
}
