package logx

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const recordTimeFormat = "2006-01-02 15:04:05,000"

// recordWriter renders one line per record, shaped like
//
//	2024-05-01 12:00:00,000 INFO watcher message sent homework=hw1.zip status=approved
//
// Multi-line values such as stack traces are quoted so a record never
// spans lines.
func recordWriter(out io.Writer, color bool) io.Writer {
	return zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       !color,
		TimeFormat:    recordTimeFormat,
		PartsOrder:    []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, CompField, zerolog.MessageFieldName},
		FieldsExclude: []string{CompField},
		FormatLevel: func(i any) string {
			s, _ := i.(string)
			return strings.ToUpper(s)
		},
	}
}
