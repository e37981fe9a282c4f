package ctlsock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/orchestrator"
)

// testResolver maps a single bridge "br0" (ifindex 1) with port "eth0"
// (ifindex 10).
type testResolver struct{}

func (testResolver) BridgeIfindex(name string) (int, bool) {
	if name == "br0" {
		return 1, true
	}
	return 0, false
}
func (testResolver) PortIfindex(brIfindex int, name string) (int, bool) {
	if brIfindex == 1 && name == "eth0" {
		return 10, true
	}
	return 0, false
}
func (testResolver) BridgeName(ifindex int) string              { return "br0" }
func (testResolver) PortName(brIfindex, portIfindex int) string { return "eth0" }

func newTestServer(t *testing.T, passphrase string) (*Client, *orchestrator.Orchestrator) {
	t.Helper()
	orch := orchestrator.New(orchestrator.Callbacks{})
	orch.BridgeAdded(1, "br0", [6]byte{0, 0, 0, 0, 0, 1})
	require.NoError(t, orch.PortAdded(1, &model.Port{
		Ident:  model.PortIdentifier{Priority: 128, Number: 1},
		IfName: "eth0", IfIndex: 10, Speed: 1000, PortEnabled: true,
	}))

	srv := NewServer(orch, testResolver{}, NewAuthenticator(passphrase, time.Minute))
	sock := filepath.Join(t.TempDir(), "mstpd.sock")
	require.NoError(t, srv.Listen(sock))
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	cli, err := Dial(sock)
	require.NoError(t, err)
	t.Cleanup(func() { cli.Close() })
	return cli, orch
}

func TestGetBridgeStatusOverSocket(t *testing.T) {
	cli, _ := newTestServer(t, "")

	var bs orchestrator.BridgeStatus
	require.NoError(t, cli.Do(OpGetBridgeStatus, BridgeRef{Bridge: "br0"}, &bs))
	assert.Equal(t, "br0", bs.IfName)
	assert.Equal(t, "mstp", bs.Version)
	assert.Equal(t, uint8(20), bs.MaxAge)
}

func TestUnknownBridgeStatus(t *testing.T) {
	cli, _ := newTestServer(t, "")

	err := cli.Do(OpGetBridgeStatus, BridgeRef{Bridge: "br9"}, nil)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StatusUnknownEntity, re.Status)
}

func TestSetBridgeConfigRequiresToken(t *testing.T) {
	cli, _ := newTestServer(t, "hunter2")

	req := SetBridgeConfigReq{
		Bridge: "br0",
		Config: model.BridgeConfig{HelloTime: 1, HelloTimeSet: true},
	}
	err := cli.Do(OpSetBridgeConfig, req, nil)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StatusDenied, re.Status)

	require.Error(t, cli.Authenticate("wrong"))
	require.NoError(t, cli.Authenticate("hunter2"))

	req.Token = cli.Token
	require.NoError(t, cli.Do(OpSetBridgeConfig, req, nil))

	var bs orchestrator.BridgeStatus
	require.NoError(t, cli.Do(OpGetBridgeStatus, BridgeRef{Bridge: "br0"}, &bs))
	assert.Equal(t, uint8(1), bs.HelloTime)
}

func TestCreateAndDeleteMSTIOverSocket(t *testing.T) {
	cli, _ := newTestServer(t, "")

	require.NoError(t, cli.Do(OpCreateMSTI, TreeRef{Bridge: "br0", MSTID: 7}, nil))

	var list []model.MSTID
	require.NoError(t, cli.Do(OpGetMSTIList, BridgeRef{Bridge: "br0"}, &list))
	assert.Equal(t, []model.MSTID{7}, list)

	require.NoError(t, cli.Do(OpSetVID2MSTID, VID2MSTIDReq{
		Bridge: "br0",
		Ranges: map[uint16]string{7: "100-200"},
	}, nil))

	var ranges map[uint16]string
	require.NoError(t, cli.Do(OpGetVID2MSTID, BridgeRef{Bridge: "br0"}, &ranges))
	assert.Equal(t, "100-200", ranges[7])

	require.NoError(t, cli.Do(OpDeleteMSTI, TreeRef{Bridge: "br0", MSTID: 7}, nil))
	err := cli.Do(OpDeleteMSTI, TreeRef{Bridge: "br0", MSTID: 0}, nil)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StatusOutOfRange, re.Status)
}
