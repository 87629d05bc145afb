package p2p

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a logging severity, ordered from least to most severe.
type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var lvlStrings = [...]string{"error", "warn", "info", "debug", "trace"}

func (l Lvl) String() string {
	if int(l) < 0 || int(l) >= len(lvlStrings) {
		return "unknown"
	}
	return lvlStrings[l]
}

// logLevel is the process-wide verbosity floor; messages above it are dropped.
var logLevel int32 = int32(LvlInfo)

// SetLogLevel adjusts the verbosity floor for the package logger.
func SetLogLevel(lvl Lvl) {
	atomic.StoreInt32(&logLevel, int32(lvl))
}

// log is the package-wide structured logger, in the key/value calling
// convention used throughout the donor codebase: log.Info("message", "k1", v1, "k2", v2).
var log = &logger{}

type logger struct {
	ctx []interface{}
}

// New returns a logger with additional context appended to every record,
// mirroring the donor's per-peer p.Log() pattern.
func (l *logger) New(ctx ...interface{}) *logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged}
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if int32(lvl) > atomic.LoadInt32(&logLevel) {
		return
	}

	var buf strings.Builder
	buf.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	buf.WriteByte(' ')
	buf.WriteString(lvl.String())
	buf.WriteString(" [")
	buf.WriteString(caller())
	buf.WriteString("] ")
	buf.WriteString(msg)

	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&buf, " %v=%v", all[i], all[i+1])
	}
	if len(all)%2 == 1 {
		fmt.Fprintf(&buf, " %v=MISSING", all[len(all)-1])
	}

	fmt.Fprintln(os.Stderr, buf.String())
}

// caller returns "file:line" of the first frame outside this file, using
// go-stack/stack the way the donor's log package reports call sites.
func caller() string {
	trace := stack.Trace().TrimRuntime()
	for _, c := range trace {
		call := fmt.Sprintf("%+v", c)
		if !strings.Contains(call, "p2p/log.go") {
			return call
		}
	}
	if len(trace) > 0 {
		return fmt.Sprintf("%+v", trace[0])
	}
	return "?"
}
