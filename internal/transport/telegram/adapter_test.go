package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

func noLog() logx.Logger { return logx.Nop() }

func TestSplitTextShort(t *testing.T) {
	t.Parallel()
	got := splitText("hello\n\nworld", 100)
	assert.Equal(t, []string{"hello\n\nworld"}, got)
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("a", 40)
	text := line + "\n" + line + "\n" + line
	got := splitText(text, 90)
	require.Len(t, got, 2)
	assert.Equal(t, line+"\n"+line, got[0])
	assert.Equal(t, line, got[1])
}

func TestSplitTextCountsRunes(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("ж", 10)
	got := splitText(text, 4)
	require.Len(t, got, 3)
	assert.Equal(t, "жжжж", got[0])
	assert.Equal(t, "жж", got[2])
}

type sentMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func newBotAPI(t *testing.T) (*httptest.Server, func() []sentMessage) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []sentMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var m sentMessage
		_ = json.Unmarshal(body, &m)
		mu.Lock()
		sent = append(sent, m)
		id := len(sent)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"message_id": 100 + id,
				"date":       0,
				"chat":       map[string]any{"id": 555, "type": "private"},
				"text":       m.Text,
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []sentMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentMessage(nil), sent...)
	}
}

func TestAdapterSendText(t *testing.T) {
	srv, sent := newBotAPI(t)

	a, err := New(Config{Token: "123:abc", URL: srv.URL, Offline: true}, noLog())
	require.NoError(t, err)

	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 555}, "У вас проверили работу \"Project 1\"!\n\nok", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(555), ref.ChatID)
	assert.Equal(t, 101, ref.MessageID)

	got := sent()
	require.Len(t, got, 1)
	assert.Equal(t, "555", got[0].ChatID)
	assert.Equal(t, "У вас проверили работу \"Project 1\"!\n\nok", got[0].Text)
}

func TestAdapterRejectsMissingChat(t *testing.T) {
	srv, sent := newBotAPI(t)

	a, err := New(Config{Token: "123:abc", URL: srv.URL, Offline: true}, noLog())
	require.NoError(t, err)

	_, err = a.SendText(context.Background(), kit.ChatTarget{}, "hi", nil)
	require.Error(t, err)
	assert.Empty(t, sent())
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "  "}, noLog())
	require.Error(t, err)
}

func TestAdapterSendTextSplitsPlainText(t *testing.T) {
	srv, sent := newBotAPI(t)

	a, err := New(Config{Token: "123:abc", URL: srv.URL, Offline: true}, noLog())
	require.NoError(t, err)
	assert.Empty(t, a.Username())

	head := strings.Repeat("<b>", 1000)
	tail := strings.Repeat("я", 3000)
	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 555}, head+"\n"+tail, nil)
	require.NoError(t, err)
	assert.Equal(t, 101, ref.MessageID)

	got := sent()
	require.Len(t, got, 2)
	assert.Equal(t, head, got[0].Text)
	assert.Equal(t, tail, got[1].Text)
	for _, m := range got {
		assert.Empty(t, m.ParseMode)
	}
}
