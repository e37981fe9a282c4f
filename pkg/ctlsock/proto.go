// Package ctlsock implements the local control socket: a stream socket with
// length-prefixed frames, a 16-bit opcode per request, JSON-encoded per-opcode
// payloads, and a status code per reply. Read-only opcodes are open to any
// local client; mutating opcodes require a bearer token when the daemon is
// configured with an auth passphrase.
package ctlsock

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mstpgo/mstpd/pkg/model"
)

// Opcode selects the operation a request performs.
type Opcode uint16

const (
	OpListBridges Opcode = iota + 1
	OpListPorts
	OpGetBridgeStatus
	OpGetTreeStatus
	OpGetPortStatus
	OpGetMSTIList
	OpGetMSTConfigID
	OpGetVID2MSTID

	OpSetBridgeConfig
	OpSetTreeConfig
	OpSetPortConfig
	OpSetPortTreeConfig
	OpSetVID2MSTID
	OpCreateMSTI
	OpDeleteMSTI
	OpPortMcheck
	OpSetDebugLevel

	OpAuthToken
)

// Status is the reply status code. The CLI exits 0 on StatusOK, 1 on local
// usage errors, and otherwise with the remote status value.
type Status uint16

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusUnknownEntity
	StatusOutOfRange
	StatusDenied
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadRequest:
		return "bad request"
	case StatusUnknownEntity:
		return "unknown entity"
	case StatusOutOfRange:
		return "value out of range"
	case StatusDenied:
		return "permission denied"
	case StatusInternal:
		return "internal error"
	default:
		return fmt.Sprintf("status %d", uint16(s))
	}
}

// maxFrameLen bounds a single control frame; requests are small and replies
// top out at a full vid-to-mstid table.
const maxFrameLen = 64 * 1024

var errFrameTooLarge = errors.New("ctlsock: frame exceeds maximum length")

// writeRequest frames op+body: 4-byte big-endian length over a 2-byte opcode
// plus the JSON body.
func writeRequest(w io.Writer, op Opcode, body interface{}) error {
	js, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if 2+len(js) > maxFrameLen {
		return errFrameTooLarge
	}
	var hdr [6]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(2+len(js)))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(op))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(js)
	return err
}

// readRequest reads one framed request.
func readRequest(r io.Reader) (Opcode, []byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n < 2 || n > maxFrameLen {
		return 0, nil, errFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	return Opcode(binary.BigEndian.Uint16(buf[0:2])), buf[2:], nil
}

// writeReply frames status+body the same way requests are framed.
func writeReply(w io.Writer, status Status, body interface{}) error {
	js, err := json.Marshal(body)
	if err != nil {
		status = StatusInternal
		js = []byte("null")
	}
	if 2+len(js) > maxFrameLen {
		return errFrameTooLarge
	}
	var hdr [6]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(2+len(js)))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(status))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(js)
	return err
}

// readReply reads one framed reply.
func readReply(r io.Reader) (Status, []byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n < 2 || n > maxFrameLen {
		return 0, nil, errFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	return Status(binary.BigEndian.Uint16(buf[0:2])), buf[2:], nil
}

// Request bodies. Bridges and ports are addressed by interface name; the
// server resolves names to the ifindexes the Orchestrator is keyed by.

// BridgeRef addresses one bridge.
type BridgeRef struct {
	Bridge string `json:"bridge"`
	Token  string `json:"token,omitempty"`
}

// PortRef addresses one port of one bridge.
type PortRef struct {
	Bridge string `json:"bridge"`
	Port   string `json:"port"`
	MSTID  uint16 `json:"mstid,omitempty"`
	Token  string `json:"token,omitempty"`
}

// TreeRef addresses one tree of one bridge.
type TreeRef struct {
	Bridge string `json:"bridge"`
	MSTID  uint16 `json:"mstid"`
	Token  string `json:"token,omitempty"`
}

// DebugLevelReq carries the per-bridge debug level opcode.
type DebugLevelReq struct {
	Bridge string `json:"bridge"`
	Level  int    `json:"level"`
	Token  string `json:"token,omitempty"`
}

// VID2MSTIDReq replaces the whole table; the wire form is the range-list
// syntax of the configuration file, one entry per MSTID.
type VID2MSTIDReq struct {
	Bridge string            `json:"bridge"`
	Ranges map[uint16]string `json:"ranges"` // mstid -> vids range list
	Token  string            `json:"token,omitempty"`
}

// SetBridgeConfigReq applies partial bridge set-points.
type SetBridgeConfigReq struct {
	Bridge string             `json:"bridge"`
	Config model.BridgeConfig `json:"config"`
	Token  string             `json:"token,omitempty"`
}

// SetTreeConfigReq applies per-MSTI bridge set-points.
type SetTreeConfigReq struct {
	Bridge string           `json:"bridge"`
	Config model.TreeConfig `json:"config"`
	Token  string           `json:"token,omitempty"`
}

// SetPortConfigReq applies partial port set-points.
type SetPortConfigReq struct {
	Bridge string           `json:"bridge"`
	Port   string           `json:"port"`
	Config model.PortConfig `json:"config"`
	Token  string           `json:"token,omitempty"`
}

// SetPortTreeConfigReq applies per-(port,MSTI) set-points.
type SetPortTreeConfigReq struct {
	Bridge string               `json:"bridge"`
	Port   string               `json:"port"`
	Config model.PortTreeConfig `json:"config"`
	Token  string               `json:"token,omitempty"`
}

// AuthReq exchanges the operator passphrase for a bearer token.
type AuthReq struct {
	Passphrase string `json:"passphrase"`
}

// AuthReply carries the issued token.
type AuthReply struct {
	Token string `json:"token"`
}

// ErrorReply carries the human-readable detail of a non-OK status.
type ErrorReply struct {
	Detail string `json:"detail,omitempty"`
}
