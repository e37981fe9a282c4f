// Package mstpconf parses the per-bridge and per-port configuration files:
// one file per bridge at <confdir>/<brname>.conf and one per port at
// <confdir>/<brname>/<portname>.conf. Lines are `key value...`, `#` starts a
// comment, whitespace separates tokens, and a `mstid <id>` line opens a
// sub-scope within which prio/vids (bridge) or prio/int-cost (port) apply to
// that MSTI instead of the CIST.
package mstpconf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mstpgo/mstpd/pkg/model"
)

// BridgeFile is the parsed form of one bridge configuration file.
type BridgeFile struct {
	Bridge model.BridgeConfig

	// Trees carries one entry per `mstid <id>` scope that set a priority.
	Trees []model.TreeConfig

	// MSTIDs lists every MSTI the file declares (each `mstid` line), in file
	// order, whether or not the scope set anything; the daemon creates these
	// instances before applying Trees/VIDs.
	MSTIDs []model.MSTID

	VIDToMSTID    model.VIDToMSTIDTable
	VIDToMSTIDSet bool
}

// PortFile is the parsed form of one port configuration file.
type PortFile struct {
	Port  model.PortConfig
	Trees []model.PortTreeConfig
}

// BridgeConfPath returns <confdir>/<brname>.conf.
func BridgeConfPath(confdir, brname string) string {
	return filepath.Join(confdir, brname+".conf")
}

// PortConfPath returns <confdir>/<brname>/<portname>.conf.
func PortConfPath(confdir, brname, portname string) string {
	return filepath.Join(confdir, brname, portname+".conf")
}

// LoadBridgeFile parses the bridge file for brname. A missing file is not an
// error: it returns an empty BridgeFile, matching the daemon's "unconfigured
// bridges run with defaults" behavior.
func LoadBridgeFile(confdir, brname string) (*BridgeFile, error) {
	f, err := os.Open(BridgeConfPath(confdir, brname))
	if os.IsNotExist(err) {
		return &BridgeFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseBridge(f, BridgeConfPath(confdir, brname))
}

// LoadPortFile parses the port file for (brname, portname); a missing file
// yields an empty PortFile.
func LoadPortFile(confdir, brname, portname string) (*PortFile, error) {
	f, err := os.Open(PortConfPath(confdir, brname, portname))
	if os.IsNotExist(err) {
		return &PortFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePort(f, PortConfPath(confdir, brname, portname))
}

type lineCtx struct {
	filename string
	line     int
}

func (c lineCtx) errf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", c.filename, c.line, fmt.Sprintf(format, args...))
}

// ParseBridge parses a bridge configuration from r. filename is used in
// error messages only.
func ParseBridge(r io.Reader, filename string) (*BridgeFile, error) {
	out := &BridgeFile{}
	mstid := model.CIST // current scope
	err := scanLines(r, filename, func(ctx lineCtx, key string, args []string) error {
		switch key {
		case "mode":
			if err := one(ctx, key, args); err != nil {
				return err
			}
			v, ok := parseEnum(args[0], "stp", "rstp", "mstp")
			if !ok {
				return ctx.errf("mode: unknown value %q", args[0])
			}
			out.Bridge.Mode = model.ProtocolVersion(v)
			out.Bridge.ModeSet = true
		case "max-age":
			n, err := argUint(ctx, key, args, model.MaxMaxAge)
			if err != nil {
				return err
			}
			out.Bridge.MaxAge = uint8(n)
			out.Bridge.MaxAgeSet = true
		case "forward-delay":
			n, err := argUint(ctx, key, args, model.MaxForwardDelay)
			if err != nil {
				return err
			}
			out.Bridge.ForwardDelay = uint8(n)
			out.Bridge.ForwardDelaySet = true
		case "max-hops":
			n, err := argUint(ctx, key, args, model.MaxHopsLimit)
			if err != nil {
				return err
			}
			out.Bridge.MaxHops = uint8(n)
			out.Bridge.MaxHopsSet = true
		case "hello":
			n, err := argUint(ctx, key, args, model.MaxHello)
			if err != nil {
				return err
			}
			out.Bridge.HelloTime = uint8(n)
			out.Bridge.HelloTimeSet = true
		case "ageing":
			n, err := argUint(ctx, key, args, 1<<31)
			if err != nil {
				return err
			}
			out.Bridge.AgeingTime = uint32(n)
			out.Bridge.AgeingTimeSet = true
		case "tx-hold-count":
			n, err := argUint(ctx, key, args, model.MaxTxHoldCount)
			if err != nil {
				return err
			}
			out.Bridge.TxHoldCount = uint8(n)
			out.Bridge.TxHoldCountSet = true
		case "confid":
			if len(args) != 2 {
				return ctx.errf("confid: want <revision> <name>")
			}
			rev, ok := parseUint(args[0], 0xFFFF)
			if !ok {
				return ctx.errf("confid: bad revision %q", args[0])
			}
			if len(args[1]) > 32 {
				return ctx.errf("confid: name longer than 32 bytes")
			}
			out.Bridge.ConfigRevision = uint16(rev)
			out.Bridge.ConfigName = args[1]
			out.Bridge.ConfigNameSet = true
		case "mstid":
			n, err := argUint(ctx, key, args, uint64(model.MaxMSTID))
			if err != nil {
				return err
			}
			mstid = model.MSTID(n)
			if mstid != model.CIST {
				out.MSTIDs = append(out.MSTIDs, mstid)
			}
		case "prio":
			n, err := argUint(ctx, key, args, model.MaxBridgePriority)
			if err != nil {
				return err
			}
			if mstid == model.CIST {
				out.Bridge.Priority = uint16(n)
				out.Bridge.PrioritySet = true
			} else {
				out.Trees = append(out.Trees, model.TreeConfig{
					MSTID: mstid, Priority: uint16(n), PrioritySet: true,
				})
			}
		case "vids":
			if len(args) < 1 {
				return ctx.errf("vids: want at least one range")
			}
			for _, a := range args {
				if err := DecodeVIDs(&out.VIDToMSTID, a, mstid); err != nil {
					return ctx.errf("vids: %v", err)
				}
			}
			out.VIDToMSTIDSet = true
		default:
			return ctx.errf("unknown bridge key %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParsePort parses a port configuration from r.
func ParsePort(r io.Reader, filename string) (*PortFile, error) {
	out := &PortFile{}
	mstid := model.CIST
	treeCfg := func(id model.MSTID) *model.PortTreeConfig {
		for i := range out.Trees {
			if out.Trees[i].MSTID == id {
				return &out.Trees[i]
			}
		}
		out.Trees = append(out.Trees, model.PortTreeConfig{MSTID: id})
		return &out.Trees[len(out.Trees)-1]
	}
	err := scanLines(r, filename, func(ctx lineCtx, key string, args []string) error {
		switch key {
		case "admin-edge":
			return argYesNo(ctx, key, args, &out.Port.AdminEdge, &out.Port.AdminEdgeSet)
		case "auto-edge":
			return argYesNo(ctx, key, args, &out.Port.AutoEdge, &out.Port.AutoEdgeSet)
		case "p2p":
			if err := one(ctx, key, args); err != nil {
				return err
			}
			v, ok := parseEnum(args[0], "no", "yes", "auto")
			if !ok {
				return ctx.errf("p2p: unknown value %q", args[0])
			}
			switch v {
			case 0:
				out.Port.P2P = model.P2PForceFalse
			case 1:
				out.Port.P2P = model.P2PForceTrue
			default:
				out.Port.P2P = model.P2PAuto
			}
			out.Port.P2PSet = true
		case "rest-role":
			return argYesNo(ctx, key, args, &out.Port.RestrictedRole, &out.Port.RestrictedRoleSet)
		case "rest-tcn":
			return argYesNo(ctx, key, args, &out.Port.RestrictedTCN, &out.Port.RestrictedTCNSet)
		case "bpdu-guard":
			return argYesNo(ctx, key, args, &out.Port.BPDUGuard, &out.Port.BPDUGuardSet)
		case "network":
			return argYesNo(ctx, key, args, &out.Port.NetworkPort, &out.Port.NetworkPortSet)
		case "dont-txmt":
			return argYesNo(ctx, key, args, &out.Port.DontTxmt, &out.Port.DontTxmtSet)
		case "bpdu-filter":
			return argYesNo(ctx, key, args, &out.Port.BPDUFilter, &out.Port.BPDUFilterSet)
		case "mstid":
			n, err := argUint(ctx, key, args, uint64(model.MaxMSTID))
			if err != nil {
				return err
			}
			mstid = model.MSTID(n)
		case "prio":
			n, err := argUint(ctx, key, args, model.MaxPortPriority)
			if err != nil {
				return err
			}
			if mstid == model.CIST {
				out.Port.Priority = uint8(n)
				out.Port.PrioritySet = true
			} else {
				c := treeCfg(mstid)
				c.Priority = uint8(n)
				c.PrioritySet = true
			}
		case "int-cost":
			n, err := argUint(ctx, key, args, model.MaxPathCost)
			if err != nil {
				return err
			}
			if mstid == model.CIST {
				out.Port.InternalCost = uint32(n)
				out.Port.InternalCostSet = true
			} else {
				c := treeCfg(mstid)
				c.InternalCost = uint32(n)
				c.InternalCostSet = true
			}
		case "ext-cost":
			n, err := argUint(ctx, key, args, model.MaxPathCost)
			if err != nil {
				return err
			}
			out.Port.ExternalCost = uint32(n)
			out.Port.ExternalCostSet = true
		default:
			return ctx.errf("unknown port key %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scanLines tokenizes r line by line, strips comments, and hands each
// non-empty line to fn as (key, args).
func scanLines(r io.Reader, filename string, fn func(ctx lineCtx, key string, args []string) error) error {
	sc := bufio.NewScanner(r)
	ctx := lineCtx{filename: filename}
	for sc.Scan() {
		ctx.line++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := fn(ctx, fields[0], fields[1:]); err != nil {
			return err
		}
	}
	return sc.Err()
}

func one(ctx lineCtx, key string, args []string) error {
	if len(args) != 1 {
		return ctx.errf("%s: want exactly one value", key)
	}
	return nil
}

func argUint(ctx lineCtx, key string, args []string, max uint64) (uint64, error) {
	if err := one(ctx, key, args); err != nil {
		return 0, err
	}
	n, ok := parseUint(args[0], max)
	if !ok {
		return 0, ctx.errf("%s: bad value %q (max %d)", key, args[0], max)
	}
	return n, nil
}

func argYesNo(ctx lineCtx, key string, args []string, dst *bool, set *bool) error {
	if err := one(ctx, key, args); err != nil {
		return err
	}
	v, ok := parseEnum(args[0], "no", "yes")
	if !ok {
		return ctx.errf("%s: want yes or no, got %q", key, args[0])
	}
	*dst = v == 1
	*set = true
	return nil
}

func parseUint(s string, max uint64) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
		if n > max {
			return 0, false
		}
	}
	return n, true
}

func parseEnum(s string, opts ...string) (int, bool) {
	for i, o := range opts {
		if strings.EqualFold(s, o) {
			return i, true
		}
	}
	return -1, false
}
