package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "hwbot/internal/transport"
)

const (
	noticeLimit   = 3500
	noticeQueueSz = 64
)

// Keys that never reach the chat. Stacks and iteration ids stay in the file.
var noticeSkip = map[string]struct{}{
	zerolog.TimestampFieldName: {},
	zerolog.LevelFieldName:     {},
	zerolog.MessageFieldName:   {},
	CompField:                  {},
	StackField:                 {},
	"iter":                     {},
}

type notice struct {
	to   kit.ChatTarget
	text string
}

// telegramSink forwards records at or above minLevel to the operator chat.
// Writes never block: records over the rate limit or beyond the queue are
// dropped.
type telegramSink struct {
	sender kit.Sender

	mu       sync.Mutex
	to       kit.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter

	queue  chan notice
	cancel context.CancelFunc
	done   chan struct{}
}

func newTelegramSink(sender kit.Sender) *telegramSink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &telegramSink{
		sender:   sender,
		minLevel: zerolog.ErrorLevel,
		limiter:  rate.NewLimiter(1, 1),
		queue:    make(chan notice, noticeQueueSz),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *telegramSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minLevel = levelOf(cfg.MinLevel, zerolog.ErrorLevel)
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.ThreadID != 0 {
		s.to.ThreadID = cfg.ThreadID
	}
}

func (s *telegramSink) setTarget(chatID int64, threadID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to.ChatID = chatID
	if threadID != 0 {
		s.to.ThreadID = threadID
	}
}

func (s *telegramSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s.mu.Lock()
	to, minLevel, lim := s.to, s.minLevel, s.limiter
	s.mu.Unlock()

	if to.ChatID == 0 || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	select {
	case s.queue <- notice{to: to, text: renderNotice(p)}:
	default:
	}
	return len(p), nil
}

func (s *telegramSink) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.queue:
			_, _ = s.sender.SendText(ctx, n.to, n.text, &kit.SendOptions{DisablePreview: true})
		}
	}
}

func (s *telegramSink) close() {
	s.cancel()
	<-s.done
}

// renderNotice turns a JSON record into a short chat message:
//
//	ERROR watcher: undefined homework status
//	err: В ответе пришел неизвестный статус pending
//	stage: format
//
// The error comes first, the remaining fields follow in key order.
func renderNotice(p []byte) string {
	var rec map[string]any
	if err := json.Unmarshal(p, &rec); err != nil {
		return clip(strings.TrimSpace(string(p)), noticeLimit)
	}

	var b strings.Builder
	level, _ := rec[zerolog.LevelFieldName].(string)
	b.WriteString(strings.ToUpper(level))
	if comp, _ := rec[CompField].(string); comp != "" {
		b.WriteString(" ")
		b.WriteString(comp)
	}
	b.WriteString(": ")
	msg, _ := rec[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(rec))
	for k, v := range rec {
		if _, skip := noticeSkip[k]; skip || v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ei, ej := keys[i] == zerolog.ErrorFieldName, keys[j] == zerolog.ErrorFieldName
		if ei != ej {
			return ei
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, rec[k])
	}
	return clip(b.String(), noticeLimit)
}

// clip cuts s to n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
