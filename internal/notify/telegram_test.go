package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"captionbot/internal/domain"
)

type fakeBotAPI struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"alerts_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, r.FormValue("chat_id")+":"+r.FormValue("text"))
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func newTestNotifier(t *testing.T) (*Telegram, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	n, err := NewTelegram(TelegramConfig{
		Token:    "123:abc",
		ChatID:   42,
		Endpoint: srv.URL + "/bot%s/%s",
		Client:   srv.Client(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return n, api
}

func TestTelegram_Notify(t *testing.T) {
	n, api := newTestNotifier(t)
	if err := n.Notify(context.Background(), "render failed"); err != nil {
		t.Fatal(err)
	}
	if len(api.sent) != 1 || api.sent[0] != "42:render failed" {
		t.Fatalf("sent = %v", api.sent)
	}
}

func TestTelegram_TruncatesLongMessages(t *testing.T) {
	n, api := newTestNotifier(t)
	n.Notify(context.Background(), strings.Repeat("x", 5000))
	text := strings.TrimPrefix(api.sent[0], "42:")
	if got := len([]rune(text)); got != telegramMaxMsgLen {
		t.Errorf("length = %d, want %d", got, telegramMaxMsgLen)
	}
}

func TestTelegram_CancelledContext(t *testing.T) {
	n, api := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
	if len(api.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestDescribeState(t *testing.T) {
	if got := DescribeState(domain.RunState{Active: true}); got != "captionbot resumed posting" {
		t.Errorf("active: %q", got)
	}
	at := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	if got := DescribeState(domain.RunState{ResumeAt: at}); got != "captionbot muted until 2026-03-01 12:05:00 UTC" {
		t.Errorf("muted: %q", got)
	}
}
