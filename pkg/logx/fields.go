package logx

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field adds one key to a record.
type Field func(e *zerolog.Event)

func String(k, v string) Field { return func(e *zerolog.Event) { e.Str(k, v) } }

func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }

func Int64(k string, v int64) Field { return func(e *zerolog.Event) { e.Int64(k, v) } }

// Int64Ptr is for the poll cursor, which may be unset.
func Int64Ptr(k string, v *int64) Field {
	return func(e *zerolog.Event) {
		if v == nil {
			e.Interface(k, nil)
			return
		}
		e.Int64(k, *v)
	}
}

func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Str(k, v.String()) }
}

// Err is a no-op for nil errors.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Stack attaches a trace. The file sink keeps it; the Telegram sink drops it.
func Stack(stack string) Field {
	return func(e *zerolog.Event) {
		if strings.TrimSpace(stack) != "" {
			e.Str(StackField, stack)
		}
	}
}
