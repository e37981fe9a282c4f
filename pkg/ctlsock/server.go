package ctlsock

import (
	"encoding/json"
	"errors"
	"net"
	"os"

	"github.com/mstpgo/mstpd/pkg/mlog"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/mstpconf"
	"github.com/mstpgo/mstpd/pkg/orchestrator"
)

// Resolver maps the interface names clients use onto the ifindexes the
// Orchestrator is keyed by. The daemon implements it over its own
// name-to-ifindex bookkeeping.
type Resolver interface {
	BridgeIfindex(name string) (int, bool)
	PortIfindex(brIfindex int, name string) (int, bool)
	BridgeName(ifindex int) string
	PortName(brIfindex, portIfindex int) string
}

// Server owns the listening socket and dispatches decoded requests to the
// Orchestrator.
type Server struct {
	orch *orchestrator.Orchestrator
	res  Resolver
	auth *Authenticator

	ln net.Listener
}

// NewServer builds a server; call Listen then Serve.
func NewServer(orch *orchestrator.Orchestrator, res Resolver, auth *Authenticator) *Server {
	return &Server{orch: orch, res: res, auth: auth}
}

// Listen binds the unix stream socket at path, replacing a stale socket file
// from an earlier run.
func (s *Server) Listen(path string) error {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return err
	}
	s.ln = ln
	return nil
}

// Serve accepts connections until Close. Each connection may carry any
// number of requests in sequence.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops the listener.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		op, body, err := readRequest(conn)
		if err != nil {
			return // EOF or a framing error; either way the conversation is over
		}
		status, reply := s.dispatch(op, body)
		if err := writeReply(conn, status, reply); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(op Opcode, body []byte) (Status, interface{}) {
	switch op {
	case OpListBridges:
		return s.listBridges()
	case OpListPorts:
		return s.listPorts(body)
	case OpGetBridgeStatus:
		return s.getBridgeStatus(body)
	case OpGetTreeStatus:
		return s.getTreeStatus(body)
	case OpGetPortStatus:
		return s.getPortStatus(body)
	case OpGetMSTIList:
		return s.getMSTIList(body)
	case OpGetMSTConfigID:
		return s.getMSTConfigID(body)
	case OpGetVID2MSTID:
		return s.getVID2MSTID(body)
	case OpSetBridgeConfig:
		return s.setBridgeConfig(body)
	case OpSetTreeConfig:
		return s.setTreeConfig(body)
	case OpSetPortConfig:
		return s.setPortConfig(body)
	case OpSetPortTreeConfig:
		return s.setPortTreeConfig(body)
	case OpSetVID2MSTID:
		return s.setVID2MSTID(body)
	case OpCreateMSTI:
		return s.createMSTI(body)
	case OpDeleteMSTI:
		return s.deleteMSTI(body)
	case OpPortMcheck:
		return s.portMcheck(body)
	case OpSetDebugLevel:
		return s.setDebugLevel(body)
	case OpAuthToken:
		return s.authToken(body)
	default:
		return StatusBadRequest, ErrorReply{Detail: "unknown opcode"}
	}
}

func (s *Server) listBridges() (Status, interface{}) {
	var names []string
	for _, ifindex := range s.orch.ListBridges() {
		names = append(names, s.res.BridgeName(ifindex))
	}
	return StatusOK, names
}

func (s *Server) listPorts(body []byte) (Status, interface{}) {
	var req BridgeRef
	brIfindex, st, rep := s.decodeBridge(body, &req)
	if st != StatusOK {
		return st, rep
	}
	ports, err := s.orch.ListPorts(brIfindex)
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	var names []string
	for _, p := range ports {
		names = append(names, s.res.PortName(brIfindex, p))
	}
	return StatusOK, names
}

func (s *Server) getBridgeStatus(body []byte) (Status, interface{}) {
	var req BridgeRef
	brIfindex, st, rep := s.decodeBridge(body, &req)
	if st != StatusOK {
		return st, rep
	}
	bs, err := s.orch.GetBridgeStatus(brIfindex)
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, bs
}

func (s *Server) getTreeStatus(body []byte) (Status, interface{}) {
	var req TreeRef
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	ts, err := s.orch.GetTreeStatus(brIfindex, model.MSTID(req.MSTID))
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, ts
}

func (s *Server) getPortStatus(body []byte) (Status, interface{}) {
	var req PortRef
	brIfindex, portIfindex, st, rep := s.decodePort(body, &req)
	if st != StatusOK {
		return st, rep
	}
	ps, err := s.orch.GetPortStatus(brIfindex, portIfindex, model.MSTID(req.MSTID))
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, ps
}

func (s *Server) getMSTIList(body []byte) (Status, interface{}) {
	var req BridgeRef
	brIfindex, st, rep := s.decodeBridge(body, &req)
	if st != StatusOK {
		return st, rep
	}
	list, err := s.orch.GetMSTIList(brIfindex)
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, list
}

func (s *Server) getMSTConfigID(body []byte) (Status, interface{}) {
	var req BridgeRef
	brIfindex, st, rep := s.decodeBridge(body, &req)
	if st != StatusOK {
		return st, rep
	}
	name, rev, digest, err := s.orch.GetMSTConfigID(brIfindex)
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, map[string]interface{}{
		"name": name, "revision": rev, "digest": digest.String(),
	}
}

func (s *Server) getVID2MSTID(body []byte) (Status, interface{}) {
	var req BridgeRef
	brIfindex, st, rep := s.decodeBridge(body, &req)
	if st != StatusOK {
		return st, rep
	}
	table, err := s.orch.GetVIDToMSTID(brIfindex)
	if err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	// render as mstid -> range list, the same syntax the config file uses
	out := make(map[uint16]string)
	for _, mstid := range append([]model.MSTID{model.CIST}, table.MSTIDsInUse()...) {
		if enc := mstpconf.EncodeVIDs(table, mstid); enc != "" {
			out[uint16(mstid)] = enc
		}
	}
	return StatusOK, out
}

func (s *Server) setBridgeConfig(body []byte) (Status, interface{}) {
	var req SetBridgeConfigReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	if err := s.orch.SetBridgeConfig(brIfindex, req.Config); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) setTreeConfig(body []byte) (Status, interface{}) {
	var req SetTreeConfigReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	if err := s.orch.SetTreeConfig(brIfindex, req.Config); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) setPortConfig(body []byte) (Status, interface{}) {
	var req SetPortConfigReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, portIfindex, st, rep := s.resolvePort(req.Bridge, req.Port)
	if st != StatusOK {
		return st, rep
	}
	if err := s.orch.SetPortConfig(brIfindex, portIfindex, req.Config); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) setPortTreeConfig(body []byte) (Status, interface{}) {
	var req SetPortTreeConfigReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, portIfindex, st, rep := s.resolvePort(req.Bridge, req.Port)
	if st != StatusOK {
		return st, rep
	}
	if err := s.orch.SetPortTreeConfig(brIfindex, portIfindex, req.Config); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) setVID2MSTID(body []byte) (Status, interface{}) {
	var req VID2MSTIDReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	var table model.VIDToMSTIDTable
	for mstid, ranges := range req.Ranges {
		if err := mstpconf.DecodeVIDs(&table, ranges, model.MSTID(mstid)); err != nil {
			return StatusBadRequest, ErrorReply{Detail: err.Error()}
		}
	}
	if err := s.orch.SetVIDToMSTID(brIfindex, table); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) createMSTI(body []byte) (Status, interface{}) {
	var req TreeRef
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	if err := s.orch.CreateMSTI(brIfindex, model.MSTID(req.MSTID)); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) deleteMSTI(body []byte) (Status, interface{}) {
	var req TreeRef
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	if err := s.orch.DeleteMSTI(brIfindex, model.MSTID(req.MSTID)); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) portMcheck(body []byte) (Status, interface{}) {
	var req PortRef
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, portIfindex, st, rep := s.resolvePort(req.Bridge, req.Port)
	if st != StatusOK {
		return st, rep
	}
	if err := s.orch.Mcheck(brIfindex, portIfindex); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) setDebugLevel(body []byte) (Status, interface{}) {
	var req DebugLevelReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	if err := s.auth.Require(req.Token); err != nil {
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	if err := s.orch.SetDebugLevel(brIfindex, req.Level); err != nil {
		return statusOf(err), ErrorReply{Detail: err.Error()}
	}
	return StatusOK, nil
}

func (s *Server) authToken(body []byte) (Status, interface{}) {
	var req AuthReq
	if err := json.Unmarshal(body, &req); err != nil {
		return StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	token, err := s.auth.Issue(req.Passphrase)
	if err != nil {
		mlog.L().Warnf("control socket auth failure: %v", err)
		return StatusDenied, ErrorReply{Detail: err.Error()}
	}
	return StatusOK, AuthReply{Token: token}
}

func (s *Server) decodeBridge(body []byte, req *BridgeRef) (int, Status, interface{}) {
	if err := json.Unmarshal(body, req); err != nil {
		return 0, StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	brIfindex, ok := s.res.BridgeIfindex(req.Bridge)
	if !ok {
		return 0, StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + req.Bridge}
	}
	return brIfindex, StatusOK, nil
}

func (s *Server) decodePort(body []byte, req *PortRef) (int, int, Status, interface{}) {
	if err := json.Unmarshal(body, req); err != nil {
		return 0, 0, StatusBadRequest, ErrorReply{Detail: err.Error()}
	}
	brIfindex, portIfindex, st, rep := s.resolvePort(req.Bridge, req.Port)
	return brIfindex, portIfindex, st, rep
}

func (s *Server) resolvePort(bridge, port string) (int, int, Status, interface{}) {
	brIfindex, ok := s.res.BridgeIfindex(bridge)
	if !ok {
		return 0, 0, StatusUnknownEntity, ErrorReply{Detail: "unknown bridge " + bridge}
	}
	portIfindex, ok := s.res.PortIfindex(brIfindex, port)
	if !ok {
		return 0, 0, StatusUnknownEntity, ErrorReply{Detail: "unknown port " + port}
	}
	return brIfindex, portIfindex, StatusOK, nil
}

func statusOf(err error) Status {
	switch {
	case errors.Is(err, model.ErrUnknownBridge),
		errors.Is(err, model.ErrUnknownPort),
		errors.Is(err, model.ErrUnknownTree):
		return StatusUnknownEntity
	case errors.Is(err, model.ErrOutOfRange),
		errors.Is(err, model.ErrInvalidEnum),
		errors.Is(err, model.ErrCISTCannotBeDeleted):
		return StatusOutOfRange
	default:
		return StatusInternal
	}
}
