package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type Config struct {
	Token string
	// URL overrides the Bot API endpoint (tests, local bot-api servers).
	URL string
	// Timeout bounds a single Bot API call.
	Timeout time.Duration
	// Offline skips the getMe handshake on construction.
	Offline bool
}

// Adapter is a send-only Telegram transport. The bot never consumes
// updates, so no poller is started.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Offline: cfg.Offline,
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Username is the bot account name reported by getMe ("" when offline).
func (a *Adapter) Username() string {
	if a.bot == nil || a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

const telegramTextLimit = 4000

// splitText cuts s into chunks of at most limit runes. A chunk ends after
// the last newline in its second half when there is one.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var out []string
	for len(rs) > 0 {
		n := min(limit, len(rs))
		if n < len(rs) {
			half := limit / 2
			for i := n - 1; i >= half; i-- {
				if rs[i] == '\n' {
					n = i + 1
					break
				}
			}
		}
		if chunk := strings.TrimRight(string(rs[:n]), "\n"); chunk != "" {
			out = append(out, chunk)
		}
		rs = rs[n:]
		for len(rs) > 0 && rs[0] == '\n' {
			rs = rs[1:]
		}
	}
	return out
}

// SendText sends text to the target chat, splitting it if necessary. The
// returned ref points at the first chunk.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.ChatID == 0 {
		return kit.MessageRef{}, errors.New("telegram: chat id is not set")
	}

	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range splitText(text, telegramTextLimit) {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}

	a.log.Debug("message sent", logx.Int64("chat_id", to.ChatID), logx.Int("message_id", first.MessageID))
	return first, nil
}
