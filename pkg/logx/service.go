package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	kit "hwbot/internal/transport"
)

// Service owns the sinks. Apply may be called at any time (config reload);
// Loggers handed out earlier pick up the new sinks immediately.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu       sync.Mutex
	file     *os.File
	filePath string
	tg       *telegramSink // nil without a sender
}

// New builds the service and applies cfg. A nil sender disables the
// Telegram sink for the lifetime of the service. The returned error is
// the one from Apply; the Logger is usable either way.
func New(cfg Config, sender kit.Sender) (*Service, Logger, error) {
	s := &Service{}
	if sender != nil {
		s.tg = newTelegramSink(sender)
	}
	err := s.Apply(cfg)
	return s, Logger{svc: s}, err
}

// Apply rebuilds the sink set. A log file that cannot be opened is left
// out and reported; the other sinks still take effect. An unchanged file
// path keeps the open handle.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sinks []io.Writer
		err   error
	)
	if cfg.Console {
		sinks = append(sinks, recordWriter(os.Stdout, true))
	}
	if cfg.File.Enabled {
		var f *os.File
		if f, err = s.openFile(cfg.File.Path); err == nil {
			sinks = append(sinks, recordWriter(zerolog.SyncWriter(f), false))
		}
	} else {
		s.closeFile()
	}
	if s.tg != nil {
		s.tg.configure(cfg.Telegram)
		if cfg.Telegram.Enabled {
			sinks = append(sinks, s.tg)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, recordWriter(os.Stdout, true))
	}

	zl := newRoot(zerolog.MultiLevelWriter(sinks...), cfg.Level)
	s.root.Store(&zl)
	return err
}

// SetTelegramTarget sets the operator chat. Records are not sent anywhere
// until it is set.
func (s *Service) SetTelegramTarget(chatID int64, threadID int) {
	if s.tg != nil {
		s.tg.setTarget(chatID, threadID)
	}
}

// Close stops the Telegram sink and closes the log file. Loggers keep
// working afterwards but file writes fail silently.
func (s *Service) Close() error {
	if s.tg != nil {
		s.tg.close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFile()
}

func (s *Service) openFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFilePath
	}
	if s.file != nil && s.filePath == path {
		return s.file, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log file %q: %w", path, err)
	}
	_ = s.closeFile()
	s.file, s.filePath = f, path
	return f, nil
}

func (s *Service) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.filePath = nil, ""
	return err
}
