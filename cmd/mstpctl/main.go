// mstpctl is the control CLI: it speaks the daemon's control socket for
// status queries and configuration, and reads the audit database directly
// for history. Exit codes: 0 success, 1 usage error, otherwise the remote
// status value.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mstpgo/mstpd/pkg/audit"
	"github.com/mstpgo/mstpd/pkg/ctlsock"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/orchestrator"
)

var (
	sockPath   = flag.String("s", "/run/mstpd.sock", "control socket path")
	passphrase = flag.String("p", os.Getenv("MSTPD_PASSPHRASE"), "auth passphrase for mutating commands")
	auditPath  = flag.String("audit-db", "/var/lib/mstpd/audit.db", "audit database (history command)")
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: mstpctl [options] <command> [args]

status:
  showbridge [<bridge>]              CIST bridge status
  showtree <bridge> <mstid>          per-MSTI bridge status
  showport <bridge> <port> [<mstid>] per-port status
  showmstilist <bridge>              instantiated MSTIs
  showmstconfid <bridge>             MST configuration identifier
  showvid2mstid <bridge>             VID-to-MSTID table
  history <bridge> [<limit>]         audit trail (reads the database directly)

bridge configuration:
  setforcevers <bridge> {stp|rstp|mstp}
  setbridgeprio <bridge> <prio>      settreeprio <bridge> <mstid> <prio>
  sethello <bridge> <s>              setmaxage <bridge> <s>
  setfdelay <bridge> <s>             setmaxhops <bridge> <n>
  settxholdcount <bridge> <n>        setageing <bridge> <s>
  setmstconfid <bridge> <rev> <name>
  setvid2mstid <bridge> <mstid> <vids>
  createtree <bridge> <mstid>        deletetree <bridge> <mstid>
  debuglevel <bridge> <level>

port configuration:
  setportadminedge <bridge> <port> {yes|no}
  setportautoedge <bridge> <port> {yes|no}
  setportp2p <bridge> <port> {yes|no|auto}
  setportrestrrole <bridge> <port> {yes|no}
  setportrestrtcn <bridge> <port> {yes|no}
  setportbpduguard <bridge> <port> {yes|no}
  setbpdufilter <bridge> <port> {yes|no}
  setportnetwork <bridge> <port> {yes|no}
  setportdonttxmt <bridge> <port> {yes|no}
  setportprio <bridge> <port> <prio>
  settreeportprio <bridge> <port> <mstid> <prio>
  setportpathcost <bridge> <port> <cost>
  settreeportcost <bridge> <port> <mstid> <cost>
  portmcheck <bridge> <port>
`)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	cmd, args := args[0], args[1:]

	if cmd == "history" {
		os.Exit(history(args))
	}

	cli, err := ctlsock.Dial(*sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mstpctl: %v\n", err)
		os.Exit(int(ctlsock.StatusInternal))
	}
	defer cli.Close()

	code, err := dispatch(cli, cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mstpctl: %v\n", err)
	}
	os.Exit(code)
}

// authToken fetches a bearer token lazily, only when a mutating command
// actually runs against an auth-enabled daemon.
func authToken(cli *ctlsock.Client) string {
	if *passphrase == "" {
		return ""
	}
	if cli.Token == "" {
		if err := cli.Authenticate(*passphrase); err != nil {
			fmt.Fprintf(os.Stderr, "mstpctl: auth: %v\n", err)
		}
	}
	return cli.Token
}

func errUsage(cmd string) error {
	return fmt.Errorf("usage error for command %q", cmd)
}

func dispatch(cli *ctlsock.Client, cmd string, args []string) (int, error) {
	switch cmd {
	case "showbridge":
		return showBridge(cli, args)
	case "showtree":
		if len(args) != 2 {
			return 1, errUsage(cmd)
		}
		mstid, err := parseMSTID(args[1])
		if err != nil {
			return 1, err
		}
		var ts orchestrator.TreeStatus
		if err := cli.Do(ctlsock.OpGetTreeStatus, ctlsock.TreeRef{Bridge: args[0], MSTID: mstid}, &ts); err != nil {
			return remote(err)
		}
		return 0, printJSON(ts)
	case "showport":
		if len(args) < 2 || len(args) > 3 {
			return 1, errUsage(cmd)
		}
		var mstid uint16
		if len(args) == 3 {
			var err error
			if mstid, err = parseMSTID(args[2]); err != nil {
				return 1, err
			}
		}
		var ps orchestrator.PortStatus
		if err := cli.Do(ctlsock.OpGetPortStatus, ctlsock.PortRef{Bridge: args[0], Port: args[1], MSTID: mstid}, &ps); err != nil {
			return remote(err)
		}
		return 0, printJSON(ps)
	case "showmstilist":
		if len(args) != 1 {
			return 1, errUsage(cmd)
		}
		var list []uint16
		if err := cli.Do(ctlsock.OpGetMSTIList, ctlsock.BridgeRef{Bridge: args[0]}, &list); err != nil {
			return remote(err)
		}
		return 0, printJSON(list)
	case "showmstconfid":
		if len(args) != 1 {
			return 1, errUsage(cmd)
		}
		var id map[string]interface{}
		if err := cli.Do(ctlsock.OpGetMSTConfigID, ctlsock.BridgeRef{Bridge: args[0]}, &id); err != nil {
			return remote(err)
		}
		return 0, printJSON(id)
	case "showvid2mstid":
		if len(args) != 1 {
			return 1, errUsage(cmd)
		}
		var ranges map[uint16]string
		if err := cli.Do(ctlsock.OpGetVID2MSTID, ctlsock.BridgeRef{Bridge: args[0]}, &ranges); err != nil {
			return remote(err)
		}
		return 0, printJSON(ranges)

	case "setforcevers":
		return setBridge(cli, cmd, args, func(v string, c *model.BridgeConfig) error {
			switch v {
			case "stp":
				c.Mode = model.VersionSTP
			case "rstp":
				c.Mode = model.VersionRSTP
			case "mstp":
				c.Mode = model.VersionMSTP
			default:
				return fmt.Errorf("bad mode %q", v)
			}
			c.ModeSet = true
			return nil
		})
	case "setbridgeprio":
		return setBridge(cli, cmd, args, func(v string, c *model.BridgeConfig) error {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return err
			}
			c.Priority, c.PrioritySet = uint16(n), true
			return nil
		})
	case "sethello":
		return setBridgeU8(cli, cmd, args, func(n uint8, c *model.BridgeConfig) {
			c.HelloTime, c.HelloTimeSet = n, true
		})
	case "setmaxage":
		return setBridgeU8(cli, cmd, args, func(n uint8, c *model.BridgeConfig) {
			c.MaxAge, c.MaxAgeSet = n, true
		})
	case "setfdelay":
		return setBridgeU8(cli, cmd, args, func(n uint8, c *model.BridgeConfig) {
			c.ForwardDelay, c.ForwardDelaySet = n, true
		})
	case "setmaxhops":
		return setBridgeU8(cli, cmd, args, func(n uint8, c *model.BridgeConfig) {
			c.MaxHops, c.MaxHopsSet = n, true
		})
	case "settxholdcount":
		return setBridgeU8(cli, cmd, args, func(n uint8, c *model.BridgeConfig) {
			c.TxHoldCount, c.TxHoldCountSet = n, true
		})
	case "setageing":
		return setBridge(cli, cmd, args, func(v string, c *model.BridgeConfig) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return err
			}
			c.AgeingTime, c.AgeingTimeSet = uint32(n), true
			return nil
		})
	case "setmstconfid":
		if len(args) != 3 {
			return 1, errUsage(cmd)
		}
		rev, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return 1, err
		}
		req := ctlsock.SetBridgeConfigReq{Bridge: args[0], Token: authToken(cli)}
		req.Config.ConfigRevision = uint16(rev)
		req.Config.ConfigName = args[2]
		req.Config.ConfigNameSet = true
		if err := cli.Do(ctlsock.OpSetBridgeConfig, req, nil); err != nil {
			return remote(err)
		}
		return 0, nil
	case "settreeprio":
		if len(args) != 3 {
			return 1, errUsage(cmd)
		}
		mstid, err := parseMSTID(args[1])
		if err != nil {
			return 1, err
		}
		prio, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			return 1, err
		}
		req := ctlsock.SetTreeConfigReq{Bridge: args[0], Token: authToken(cli)}
		req.Config = model.TreeConfig{MSTID: model.MSTID(mstid), Priority: uint16(prio), PrioritySet: true}
		if err := cli.Do(ctlsock.OpSetTreeConfig, req, nil); err != nil {
			return remote(err)
		}
		return 0, nil
	case "setvid2mstid":
		if len(args) != 3 {
			return 1, errUsage(cmd)
		}
		mstid, err := parseMSTID(args[1])
		if err != nil {
			return 1, err
		}
		// fetch the current table so the update swaps whole-table, not a
		// partial rewrite
		var ranges map[uint16]string
		if err := cli.Do(ctlsock.OpGetVID2MSTID, ctlsock.BridgeRef{Bridge: args[0]}, &ranges); err != nil {
			return remote(err)
		}
		ranges[mstid] = args[2]
		if err := cli.Do(ctlsock.OpSetVID2MSTID, ctlsock.VID2MSTIDReq{
			Bridge: args[0], Ranges: ranges, Token: authToken(cli),
		}, nil); err != nil {
			return remote(err)
		}
		return 0, nil
	case "createtree", "deletetree":
		if len(args) != 2 {
			return 1, errUsage(cmd)
		}
		mstid, err := parseMSTID(args[1])
		if err != nil {
			return 1, err
		}
		op := ctlsock.OpCreateMSTI
		if cmd == "deletetree" {
			op = ctlsock.OpDeleteMSTI
		}
		if err := cli.Do(op, ctlsock.TreeRef{Bridge: args[0], MSTID: mstid, Token: authToken(cli)}, nil); err != nil {
			return remote(err)
		}
		return 0, nil
	case "debuglevel":
		if len(args) != 2 {
			return 1, errUsage(cmd)
		}
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return 1, err
		}
		if err := cli.Do(ctlsock.OpSetDebugLevel, ctlsock.DebugLevelReq{
			Bridge: args[0], Level: level, Token: authToken(cli),
		}, nil); err != nil {
			return remote(err)
		}
		return 0, nil

	case "setportadminedge":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.AdminEdge, c.AdminEdgeSet = b, true
		})
	case "setportautoedge":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.AutoEdge, c.AutoEdgeSet = b, true
		})
	case "setportrestrrole":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.RestrictedRole, c.RestrictedRoleSet = b, true
		})
	case "setportrestrtcn":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.RestrictedTCN, c.RestrictedTCNSet = b, true
		})
	case "setportbpduguard":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.BPDUGuard, c.BPDUGuardSet = b, true
		})
	case "setbpdufilter":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.BPDUFilter, c.BPDUFilterSet = b, true
		})
	case "setportnetwork":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.NetworkPort, c.NetworkPortSet = b, true
		})
	case "setportdonttxmt":
		return setPortBool(cli, cmd, args, func(b bool, c *model.PortConfig) {
			c.DontTxmt, c.DontTxmtSet = b, true
		})
	case "setportp2p":
		if len(args) != 3 {
			return 1, errUsage(cmd)
		}
		var c model.PortConfig
		switch args[2] {
		case "yes":
			c.P2P = model.P2PForceTrue
		case "no":
			c.P2P = model.P2PForceFalse
		case "auto":
			c.P2P = model.P2PAuto
		default:
			return 1, fmt.Errorf("bad p2p value %q", args[2])
		}
		c.P2PSet = true
		return doSetPort(cli, args[0], args[1], c)
	case "setportprio":
		if len(args) != 3 {
			return 1, errUsage(cmd)
		}
		n, err := strconv.ParseUint(args[2], 10, 8)
		if err != nil {
			return 1, err
		}
		var c model.PortConfig
		c.Priority, c.PrioritySet = uint8(n), true
		return doSetPort(cli, args[0], args[1], c)
	case "setportpathcost":
		if len(args) != 3 {
			return 1, errUsage(cmd)
		}
		n, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return 1, err
		}
		var c model.PortConfig
		c.ExternalCost, c.ExternalCostSet = uint32(n), true
		return doSetPort(cli, args[0], args[1], c)
	case "settreeportprio":
		if len(args) != 4 {
			return 1, errUsage(cmd)
		}
		mstid, err := parseMSTID(args[2])
		if err != nil {
			return 1, err
		}
		n, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil {
			return 1, err
		}
		req := ctlsock.SetPortTreeConfigReq{Bridge: args[0], Port: args[1], Token: authToken(cli)}
		req.Config = model.PortTreeConfig{MSTID: model.MSTID(mstid), Priority: uint8(n), PrioritySet: true}
		if err := cli.Do(ctlsock.OpSetPortTreeConfig, req, nil); err != nil {
			return remote(err)
		}
		return 0, nil
	case "settreeportcost":
		if len(args) != 4 {
			return 1, errUsage(cmd)
		}
		mstid, err := parseMSTID(args[2])
		if err != nil {
			return 1, err
		}
		n, err := strconv.ParseUint(args[3], 10, 32)
		if err != nil {
			return 1, err
		}
		req := ctlsock.SetPortTreeConfigReq{Bridge: args[0], Port: args[1], Token: authToken(cli)}
		req.Config = model.PortTreeConfig{MSTID: model.MSTID(mstid), InternalCost: uint32(n), InternalCostSet: true}
		if err := cli.Do(ctlsock.OpSetPortTreeConfig, req, nil); err != nil {
			return remote(err)
		}
		return 0, nil
	case "portmcheck":
		if len(args) != 2 {
			return 1, errUsage(cmd)
		}
		if err := cli.Do(ctlsock.OpPortMcheck, ctlsock.PortRef{
			Bridge: args[0], Port: args[1], Token: authToken(cli),
		}, nil); err != nil {
			return remote(err)
		}
		return 0, nil

	default:
		usage()
		return 1, fmt.Errorf("unknown command %q", cmd)
	}
}

func showBridge(cli *ctlsock.Client, args []string) (int, error) {
	var names []string
	if len(args) == 1 {
		names = args
	} else {
		if err := cli.Do(ctlsock.OpListBridges, struct{}{}, &names); err != nil {
			return remote(err)
		}
	}
	for _, name := range names {
		var bs orchestrator.BridgeStatus
		if err := cli.Do(ctlsock.OpGetBridgeStatus, ctlsock.BridgeRef{Bridge: name}, &bs); err != nil {
			return remote(err)
		}
		if err := printJSON(bs); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func history(args []string) int {
	if len(args) < 1 || len(args) > 2 {
		usage()
		return 1
	}
	limit := 50
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "mstpctl: bad limit %q\n", args[1])
			return 1
		}
		limit = n
	}
	log, err := audit.Open(*auditPath, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mstpctl: %v\n", err)
		return int(ctlsock.StatusInternal)
	}
	defer log.Close()
	events, err := log.Query(args[0], limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mstpctl: %v\n", err)
		return int(ctlsock.StatusInternal)
	}
	for _, e := range events {
		fmt.Printf("%s  %-16s %-8s %-8s msti %-4d %s\n",
			e.At.Format("2006-01-02 15:04:05"), e.Kind, e.Bridge, e.Port, e.MSTID, e.Detail)
	}
	return 0
}

func setBridge(cli *ctlsock.Client, cmd string, args []string, apply func(string, *model.BridgeConfig) error) (int, error) {
	if len(args) != 2 {
		return 1, errUsage(cmd)
	}
	req := ctlsock.SetBridgeConfigReq{Bridge: args[0], Token: authToken(cli)}
	if err := apply(args[1], &req.Config); err != nil {
		return 1, err
	}
	if err := cli.Do(ctlsock.OpSetBridgeConfig, req, nil); err != nil {
		return remote(err)
	}
	return 0, nil
}

func setBridgeU8(cli *ctlsock.Client, cmd string, args []string, apply func(uint8, *model.BridgeConfig)) (int, error) {
	return setBridge(cli, cmd, args, func(v string, c *model.BridgeConfig) error {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return err
		}
		apply(uint8(n), c)
		return nil
	})
}

func setPortBool(cli *ctlsock.Client, cmd string, args []string, apply func(bool, *model.PortConfig)) (int, error) {
	if len(args) != 3 {
		return 1, errUsage(cmd)
	}
	var b bool
	switch strings.ToLower(args[2]) {
	case "yes":
		b = true
	case "no":
		b = false
	default:
		return 1, fmt.Errorf("want yes or no, got %q", args[2])
	}
	var c model.PortConfig
	apply(b, &c)
	return doSetPort(cli, args[0], args[1], c)
}

func doSetPort(cli *ctlsock.Client, bridge, port string, c model.PortConfig) (int, error) {
	req := ctlsock.SetPortConfigReq{Bridge: bridge, Port: port, Config: c, Token: authToken(cli)}
	if err := cli.Do(ctlsock.OpSetPortConfig, req, nil); err != nil {
		return remote(err)
	}
	return 0, nil
}

func parseMSTID(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n > uint64(model.MaxMSTID) {
		return 0, fmt.Errorf("bad mstid %q", s)
	}
	return uint16(n), nil
}

func remote(err error) (int, error) {
	var re *ctlsock.RemoteError
	if ok := asRemote(err, &re); ok {
		return int(re.Status), err
	}
	return int(ctlsock.StatusInternal), err
}

func asRemote(err error, target **ctlsock.RemoteError) bool {
	re, ok := err.(*ctlsock.RemoteError)
	if ok {
		*target = re
	}
	return ok
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
