// Package log provides logging utilities including colored console output
// and connection logging capabilities.
//
// A Logger carries a verbosity switch and a set of key/value fields. Loggers
// travel with a context.Context so that every request made on behalf of a
// scenario is logged with the operation it belongs to.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var gray = color.New(color.FgHiBlack).FprintfFunc()

// all loggers share one lock so that lines from concurrent racers never interleave
var mu sync.Mutex

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	std.ErrorMsg(format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	std.InfoMsg(format, a...)
}

var std = &Logger{out: os.Stderr}

type field struct {
	key   string
	value any
}

// Logger writes colored messages. The zero value is not usable, create
// loggers with New or NewWithWriter. A nil *Logger discards everything.
type Logger struct {
	out     io.Writer
	verbose bool
	fields  []field
}

// New returns a logger writing to stderr.
func New(verbose bool) *Logger {
	return NewWithWriter(os.Stderr, verbose)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{out: w, verbose: verbose}
}

// Discard returns a logger that drops all messages.
func Discard() *Logger {
	return &Logger{out: io.Discard}
}

// Verbose reports whether verbose messages are printed.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// With returns a child logger that appends key=value to every message.
// A later field with the same key replaces the earlier one.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}

	fields := make([]field, 0, len(l.fields)+1)
	for _, f := range l.fields {
		if f.key != key {
			fields = append(fields, f)
		}
	}
	fields = append(fields, field{key: key, value: value})

	return &Logger{out: l.out, verbose: l.verbose, fields: fields}
}

// Value returns the value of the field named key, if present.
func (l *Logger) Value(key string) (any, bool) {
	if l == nil {
		return nil, false
	}
	for _, f := range l.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// ErrorMsg prints an error message in red color.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	l.print(red, "[!] Error: ", format, a...)
}

// InfoMsg prints an informational message in blue color.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	l.print(blue, "[+] ", format, a...)
}

// VerboseMsg prints a message only if the logger is verbose.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.print(gray, "[v] ", format, a...)
}

// Writer returns an io.Writer that emits every written line as a verbose
// message. Useful to plug the logger into libraries expecting a writer.
func (l *Logger) Writer() io.Writer {
	return verboseWriter{l: l}
}

func (l *Logger) print(fn func(io.Writer, string, ...interface{}), prefix, format string, a ...interface{}) {
	if l == nil || l.out == nil {
		return
	}

	msg := strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	if len(l.fields) > 0 {
		msg += " " + l.formatFields()
	}

	mu.Lock()
	defer mu.Unlock()
	fn(l.out, "%s%s\n", prefix, msg)
}

func (l *Logger) formatFields() string {
	parts := make([]string, 0, len(l.fields))
	for _, f := range l.fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.key, f.value))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type verboseWriter struct {
	l *Logger
}

func (w verboseWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.l.VerboseMsg("%s", line)
		}
	}
	return len(p), nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a discarding logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Discard()
}

// WithField derives a context whose logger carries an extra field.
func WithField(ctx context.Context, key string, value any) context.Context {
	return NewContext(ctx, FromContext(ctx).With(key, value))
}
