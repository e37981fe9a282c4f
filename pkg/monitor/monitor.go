// Package monitor is the optional read-only HTTP status endpoint: bridge,
// tree and port snapshots as JSON, plus a WebSocket channel that pushes
// topology-change and port-state events to connected dashboards. It never
// mutates protocol state — every mutating surface stays on the control
// socket.
package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/mstpgo/mstpd/pkg/audit"
	"github.com/mstpgo/mstpd/pkg/mlog"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/orchestrator"
)

// Resolver is the name-to-ifindex mapping the daemon maintains; it is the
// same interface the control socket uses.
type Resolver interface {
	BridgeIfindex(name string) (int, bool)
	PortIfindex(brIfindex int, name string) (int, bool)
	BridgeName(ifindex int) string
	PortName(brIfindex, portIfindex int) string
}

// Server serves the status API and the event WebSocket.
type Server struct {
	orch *orchestrator.Orchestrator
	res  Resolver
	hist *audit.Log // may be nil

	httpSrv *http.Server

	wsMu      sync.Mutex
	wsClients map[*wsClient]bool
}

// NewServer builds the monitor around an Orchestrator. hist may be nil when
// the audit trail is disabled.
func NewServer(orch *orchestrator.Orchestrator, res Resolver, hist *audit.Log) *Server {
	return &Server{
		orch:      orch,
		res:       res,
		hist:      hist,
		wsClients: make(map[*wsClient]bool),
	}
}

// Start begins serving on addr. It returns once the listener is running;
// serve errors after that are logged.
func (s *Server) Start(addr string) error {
	r := mux.NewRouter()
	r.HandleFunc("/api/bridges", s.handleBridges).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}", s.handleBridge).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}/msti/{mstid}", s.handleTree).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}/ports", s.handlePorts).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}/ports/{port}", s.handlePort).Methods(http.MethodGet)
	r.HandleFunc("/api/bridges/{bridge}/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mlog.L().Errorf("monitor server: %v", err)
		}
	}()
	return nil
}

// Stop shuts the HTTP server and every WebSocket client down.
func (s *Server) Stop() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
	s.wsMu.Lock()
	for c := range s.wsClients {
		close(c.send)
		delete(s.wsClients, c)
	}
	s.wsMu.Unlock()
}

func (s *Server) handleBridges(w http.ResponseWriter, r *http.Request) {
	var out []orchestrator.BridgeStatus
	for _, ifindex := range s.orch.ListBridges() {
		if bs, err := s.orch.GetBridgeStatus(ifindex); err == nil {
			out = append(out, bs)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	brIfindex, ok := s.bridgeOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	bs, err := s.orch.GetBridgeStatus(brIfindex)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, bs)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	brIfindex, ok := s.bridgeOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	mstid, err := strconv.ParseUint(mux.Vars(r)["mstid"], 10, 16)
	if err != nil {
		http.Error(w, "bad mstid", http.StatusBadRequest)
		return
	}
	ts, err := s.orch.GetTreeStatus(brIfindex, model.MSTID(mstid))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, ts)
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	brIfindex, ok := s.bridgeOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ports, err := s.orch.ListPorts(brIfindex)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	var out []orchestrator.PortStatus
	for _, p := range ports {
		if ps, err := s.orch.GetPortStatus(brIfindex, p, model.CIST); err == nil {
			out = append(out, ps)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	brIfindex, ok := s.bridgeOf(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	portIfindex, ok := s.res.PortIfindex(brIfindex, mux.Vars(r)["port"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	mstid := uint64(0)
	if v := r.URL.Query().Get("mstid"); v != "" {
		var err error
		if mstid, err = strconv.ParseUint(v, 10, 16); err != nil {
			http.Error(w, "bad mstid", http.StatusBadRequest)
			return
		}
	}
	ps, err := s.orch.GetPortStatus(brIfindex, portIfindex, model.MSTID(mstid))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, ps)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "audit trail disabled", http.StatusNotFound)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	events, err := s.hist.Query(mux.Vars(r)["bridge"], limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) bridgeOf(r *http.Request) (int, bool) {
	return s.res.BridgeIfindex(mux.Vars(r)["bridge"])
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
