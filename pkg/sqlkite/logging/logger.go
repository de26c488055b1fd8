// Package logging provides the leveled logger used across sqlkite. Entries are written
// as JSON lines, or as colored single lines when the output is a terminal.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/term"
)

const traceIDKey = "__trace_id__"

// PrettyPrint is implemented by messages that render themselves on a terminal.
type PrettyPrint interface {
	PrettyPrint(writer io.Writer)
}

// Logger is the leveled logging surface.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Log(args ...any)
	Logf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Notice(args ...any)
	Noticef(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	ChangeLevel(level Level)
}

type logEntry struct {
	Level   Level     `json:"level"`
	Time    time.Time `json:"time"`
	Message any       `json:"message"`
	TraceID string    `json:"trace_id,omitempty"`
	Caller  string    `json:"caller,omitempty"`
}

type logger struct {
	level      Level
	normalOut  io.Writer
	errorOut   io.Writer
	isTerminal bool
	lock       chan struct{}
	exit       func(code int)
}

// NewLogger returns a Logger writing to stdout, and to stderr for ERROR and FATAL.
func NewLogger(level Level) Logger {
	return NewLoggerWithWriters(level, os.Stdout, os.Stderr)
}

// NewLoggerWithWriters returns a Logger writing to the given outputs. Pretty output is
// used when out is a terminal.
func NewLoggerWithWriters(level Level, out, errOut io.Writer) Logger {
	return &logger{
		level:      level,
		normalOut:  out,
		errorOut:   errOut,
		isTerminal: checkIfTerminal(out),
		lock:       make(chan struct{}, 1),
		exit:       os.Exit,
	}
}

func checkIfTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return term.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func (l *logger) logfWithSkip(skip int, level Level, format string, args ...any) {
	if level < l.level {
		return
	}

	entry := logEntry{Level: level, Time: time.Now()}
	args, entry.TraceID = extractTraceID(args)

	switch {
	case format != "":
		entry.Message = fmt.Sprintf(format, args...)
	case len(args) == 1:
		entry.Message = args[0]
	default:
		entry.Message = fmt.Sprint(args...)
	}

	if _, file, line, ok := runtime.Caller(skip); ok {
		entry.Caller = filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	out := l.normalOut
	if level >= ERROR {
		out = l.errorOut
	}

	l.lock <- struct{}{}

	if l.isTerminal {
		l.prettyPrint(&entry, out)
	} else {
		_ = json.NewEncoder(out).Encode(entry)
	}

	<-l.lock

	if level == FATAL {
		l.exit(1)
	}
}

func (*logger) prettyPrint(e *logEntry, out io.Writer) {
	fmt.Fprintf(out, "\u001B[38;5;%dm%s\u001B[0m [%s] ", e.Level.color(), e.Level.String()[0:4], e.Time.Format(time.TimeOnly))

	if e.TraceID != "" {
		fmt.Fprintf(out, "\u001B[38;5;8m%s\u001B[0m ", e.TraceID)
	}

	if fn, ok := e.Message.(PrettyPrint); ok {
		fn.PrettyPrint(out)
		return
	}

	fmt.Fprintf(out, "%v\n", e.Message)
}

// extractTraceID removes the trace marker appended by ContextLogger.
func extractTraceID(args []any) ([]any, string) {
	if len(args) == 0 {
		return args, ""
	}

	m, ok := args[len(args)-1].(map[string]any)
	if !ok {
		return args, ""
	}

	id, ok := m[traceIDKey].(string)
	if !ok {
		return args, ""
	}

	return args[:len(args)-1], id
}

func (l *logger) logf(level Level, format string, args ...any) {
	// skip=3: runtime.Caller -> logfWithSkip -> logf -> Debug/Info -> user code
	l.logfWithSkip(3, level, format, args...)
}

func (l *logger) Debug(args ...any)             { l.logf(DEBUG, "", args...) }
func (l *logger) Debugf(f string, args ...any)  { l.logf(DEBUG, f, args...) }
func (l *logger) Log(args ...any)               { l.logf(INFO, "", args...) }
func (l *logger) Logf(f string, args ...any)    { l.logf(INFO, f, args...) }
func (l *logger) Info(args ...any)              { l.logf(INFO, "", args...) }
func (l *logger) Infof(f string, args ...any)   { l.logf(INFO, f, args...) }
func (l *logger) Notice(args ...any)            { l.logf(NOTICE, "", args...) }
func (l *logger) Noticef(f string, args ...any) { l.logf(NOTICE, f, args...) }
func (l *logger) Warn(args ...any)              { l.logf(WARN, "", args...) }
func (l *logger) Warnf(f string, args ...any)   { l.logf(WARN, f, args...) }
func (l *logger) Error(args ...any)             { l.logf(ERROR, "", args...) }
func (l *logger) Errorf(f string, args ...any)  { l.logf(ERROR, f, args...) }
func (l *logger) Fatal(args ...any)             { l.logf(FATAL, "", args...) }
func (l *logger) Fatalf(f string, args ...any)  { l.logf(FATAL, f, args...) }

func (l *logger) ChangeLevel(level Level) {
	l.level = level
}
