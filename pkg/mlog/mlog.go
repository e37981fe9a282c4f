// Package mlog wraps sirupsen/logrus the way the original daemon's
// ERROR_BRNAME/INFO_PRTNAME/SMLOG_MSTINAME macros do: every line is tagged
// with structured fields (bridge, port, mstid) instead of folded into a
// formatted prefix string, and a TraceSM level gates per-transition logging
// so a quiescence pass stays silent by default.
package mlog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once    sync.Once
	root    *logrus.Logger
	traceSM bool
	traceMu sync.RWMutex
)

// L returns the process-wide logger, created on first use with the daemon's
// default formatter (text, full timestamps) — callers that want JSON output
// call SetJSONFormat before the first log line.
func L() *logrus.Logger {
	once.Do(func() {
		root = logrus.New()
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
	return root
}

// SetLevel parses and applies a logrus level name, used by the control
// socket's per-bridge "debug level" opcode.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L().SetLevel(lvl)
	return nil
}

// SetJSONFormat switches the logger to structured JSON output, for daemons
// run under a log collector rather than a terminal.
func SetJSONFormat() {
	L().SetFormatter(&logrus.JSONFormatter{})
}

// EnableTraceSM turns on per-state-machine-transition logging. This is
// separate from logrus's own level because it fires on every Driver pass of
// every bridge and would otherwise drown ordinary operational logs even at
// Debug level.
func EnableTraceSM(enabled bool) {
	traceMu.Lock()
	defer traceMu.Unlock()
	traceSM = enabled
}

// TraceSMEnabled reports whether per-transition logging is on.
func TraceSMEnabled() bool {
	traceMu.RLock()
	defer traceMu.RUnlock()
	return traceSM
}

// Bridge returns a logger entry tagged with the given bridge ifindex, the
// unit every per-bridge log line in this daemon is scoped to.
func Bridge(ifindex int) *logrus.Entry {
	return L().WithField("bridge", ifindex)
}

// Port returns a logger entry tagged with bridge and port ifindex.
func Port(brIfindex, portIfindex int) *logrus.Entry {
	return Bridge(brIfindex).WithField("port", portIfindex)
}

// Tree returns a logger entry tagged with bridge, port and mstid, the
// granularity TraceSM transition logging needs.
func Tree(brIfindex, portIfindex int, mstid uint16) *logrus.Entry {
	return Port(brIfindex, portIfindex).WithField("mstid", mstid)
}
