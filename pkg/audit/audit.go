// Package audit persists topology-change and role-transition events to a
// sqlite database, so an operator can reconstruct what the protocol did
// across daemon restarts (`mstpctl history`). Writes are fire-and-forget
// from the daemon's point of view: a failed insert is logged and dropped,
// never propagated into the protocol path.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mstpgo/mstpd/pkg/mlog"
)

// EventKind classifies one audit record.
type EventKind string

const (
	// EventTopologyChange records a detected or propagated topology change.
	EventTopologyChange EventKind = "topology-change"

	// EventRoleChange records a port role transition.
	EventRoleChange EventKind = "role-change"

	// EventStateChange records a forwarding-state push to the kernel.
	EventStateChange EventKind = "state-change"

	// EventBPDUGuard records a bpdu-guard shutdown.
	EventBPDUGuard EventKind = "bpdu-guard"
)

// Event is one audit record.
type Event struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Kind   EventKind `json:"kind"`
	Bridge string    `json:"bridge"`
	Port   string    `json:"port,omitempty"`
	MSTID  uint16    `json:"mstid"`
	Detail string    `json:"detail"`
}

// Log is the event store. maxRows bounds the table: the oldest rows are
// deleted as new ones arrive, making the table a durable ring.
type Log struct {
	db      *sql.DB
	maxRows int
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	bridge  TEXT    NOT NULL,
	port    TEXT    NOT NULL DEFAULT '',
	mstid   INTEGER NOT NULL DEFAULT 0,
	detail  TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_bridge_at ON events(bridge, at);
`

// Open creates or opens the database at path. maxRows <= 0 selects an
// unbounded table.
func Open(path string, maxRows int) (*Log, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &Log{db: db, maxRows: maxRows}, nil
}

// Close releases the database.
func (l *Log) Close() error { return l.db.Close() }

// Record inserts one event. Errors are logged, not returned: the audit
// trail must never stall the protocol.
func (l *Log) Record(kind EventKind, bridge, port string, mstid uint16, detail string) {
	_, err := l.db.Exec(
		"INSERT INTO events (at, kind, bridge, port, mstid, detail) VALUES (?, ?, ?, ?, ?, ?)",
		time.Now().Unix(), string(kind), bridge, port, mstid, detail)
	if err != nil {
		mlog.L().WithField("bridge", bridge).Warnf("audit insert failed: %v", err)
		return
	}
	if l.maxRows > 0 {
		_, err = l.db.Exec(
			"DELETE FROM events WHERE id <= (SELECT MAX(id) FROM events) - ?", l.maxRows)
		if err != nil {
			mlog.L().Warnf("audit trim failed: %v", err)
		}
	}
}

// Query returns up to limit events for bridge (all bridges when empty),
// newest first.
func (l *Log) Query(bridge string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if bridge == "" {
		rows, err = l.db.Query(
			"SELECT id, at, kind, bridge, port, mstid, detail FROM events ORDER BY id DESC LIMIT ?", limit)
	} else {
		rows, err = l.db.Query(
			"SELECT id, at, kind, bridge, port, mstid, detail FROM events WHERE bridge = ? ORDER BY id DESC LIMIT ?",
			bridge, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Bridge, &e.Port, &e.MSTID, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(at, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
