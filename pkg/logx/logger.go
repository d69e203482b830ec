package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// CompField names the component that wrote a record.
	CompField  = "comp"
	StackField = "stack"

	defaultComp = "bot"
)

func init() {
	// Record lines show milliseconds, so keep them in the JSON timestamp.
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorFieldName = "err"
}

// Logger is cheap to copy. The zero value discards everything; a Logger
// taken from a Service follows later Service.Apply calls.
type Logger struct {
	svc    *Service
	base   *zerolog.Logger
	fields []Field
}

func Nop() Logger {
	zl := zerolog.Nop()
	return Logger{base: &zl}
}

// NewConsole writes record lines to stdout. It serves until the Service
// is configured.
func NewConsole(level string) Logger {
	zl := newRoot(recordWriter(os.Stdout, true), level)
	return Logger{base: &zl}
}

// NewWriter writes raw JSON records to w.
func NewWriter(w io.Writer, level string) Logger {
	zl := newRoot(w, level)
	return Logger{base: &zl}
}

func newRoot(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(levelOf(level, zerolog.InfoLevel)).
		With().Timestamp().Str(CompField, defaultComp).
		Logger()
}

func (l Logger) IsZero() bool { return l.svc == nil && l.base == nil && len(l.fields) == 0 }

// With returns a child logger; later fields override earlier ones with the
// same key.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	child := l
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(append(child.fields, l.fields...), fields...)
	return child
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	var zl *zerolog.Logger
	switch {
	case l.svc != nil:
		zl = l.svc.root.Load()
	case l.base != nil:
		zl = l.base
	}
	if zl == nil {
		return
	}
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	for _, group := range [][]Field{l.fields, fields} {
		for _, f := range group {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

// levelOf accepts the level names used in config files ("INFO", "warning").
func levelOf(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return def
	case "warning":
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return lvl
}
