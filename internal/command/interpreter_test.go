package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"captionbot/internal/domain"
	"captionbot/internal/pipeline"
	"captionbot/internal/runstate"
)

type sentDM struct{ recipient, text string }

type fakePlatform struct {
	posts     map[string]domain.Post
	fetchErr  error
	deleteErr error
	deleted   []string
	sent      []sentDM
}

func (f *fakePlatform) FetchPost(_ context.Context, id string) (domain.Post, error) {
	if f.fetchErr != nil {
		return domain.Post{}, f.fetchErr
	}
	p, ok := f.posts[id]
	if !ok {
		return domain.Post{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakePlatform) DeletePost(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePlatform) SendDirectMessage(_ context.Context, recipientID, text string) error {
	f.sent = append(f.sent, sentDM{recipientID, text})
	return nil
}

type fakeCaptioner struct{ jobs []pipeline.Job }

func (f *fakeCaptioner) Caption(_ context.Context, job pipeline.Job) (pipeline.Result, error) {
	f.jobs = append(f.jobs, job)
	return pipeline.Result{}, nil
}

const (
	monitoredID = "1000"
	botID       = "2000"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	in       *Interpreter
	platform *fakePlatform
	capt     *fakeCaptioner
	state    *runstate.Controller
}

func newHarness() *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		platform: &fakePlatform{posts: map[string]domain.Post{}},
		capt:     &fakeCaptioner{},
		state: runstate.New(runstate.Config{
			Logger:    logger,
			Now:       func() time.Time { return now },
			AfterFunc: func(time.Duration, func()) runstate.Timer { return noopTimer{} },
		}),
	}
	h.in = NewInterpreter(Config{
		State:       h.state,
		Captioner:   h.capt,
		Fetcher:     h.platform,
		Deleter:     h.platform,
		Messenger:   h.platform,
		MonitoredID: monitoredID,
		BotID:       botID,
		BotHandle:   "CaptionBot",
		Logger:      logger,
	})
	return h
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func dm(sender, text string) domain.DirectMessage {
	return domain.DirectMessage{ID: "dm-1", SenderID: sender, RecipientID: botID, Text: text}
}

func TestHandleDirectMessage_StopSetsResumeTime(t *testing.T) {
	h := newHarness()
	if err := h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!stop5")); err != nil {
		t.Fatal(err)
	}
	if h.state.IsActive() {
		t.Fatal("expected muted")
	}
	if want := now.Add(5 * time.Minute); !h.state.Snapshot().ResumeAt.Equal(want) {
		t.Fatalf("resumeAt = %v, want %v", h.state.Snapshot().ResumeAt, want)
	}
	if len(h.platform.sent) != 1 {
		t.Fatalf("expected one response, got %d", len(h.platform.sent))
	}
	got := h.platform.sent[0]
	if got.recipient != monitoredID {
		t.Errorf("response sent to %s", got.recipient)
	}
	if want := "Bot will resume posting at 2026-03-01T12:05:00.000Z (That's UTC)"; got.text != want {
		t.Errorf("response = %q, want %q", got.text, want)
	}
}

func TestHandleDirectMessage_SecondStopNotesClearedTimer(t *testing.T) {
	h := newHarness()
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!stop5"))
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!stop 10"))

	if len(h.platform.sent) != 2 {
		t.Fatalf("expected two responses, got %d", len(h.platform.sent))
	}
	if !strings.HasPrefix(h.platform.sent[1].text, ClearedPrefix+"Bot will resume posting at 2026-03-01T12:10:00.000Z") {
		t.Errorf("second response = %q", h.platform.sent[1].text)
	}
}

func TestHandleDirectMessage_MalformedStop(t *testing.T) {
	h := newHarness()
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!stop soon"))
	if len(h.platform.sent) != 1 || h.platform.sent[0].text != ErrorMessage {
		t.Fatalf("expected generic error, got %+v", h.platform.sent)
	}
	if !h.state.IsActive() {
		t.Fatal("malformed stop must not mute")
	}
}

func TestHandleDirectMessage_Delete(t *testing.T) {
	h := newHarness()
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!delete 555"))
	if len(h.platform.deleted) != 1 || h.platform.deleted[0] != "555" {
		t.Fatalf("deleted = %v", h.platform.deleted)
	}
	if h.platform.sent[0].text != DeletedMessage {
		t.Errorf("response = %q", h.platform.sent[0].text)
	}

	h.platform.deleteErr = errors.New("404")
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!delete 556"))
	if h.platform.sent[1].text != ErrorMessage {
		t.Errorf("response = %q", h.platform.sent[1].text)
	}
}

func TestHandleDirectMessage_NoCommandNoResponse(t *testing.T) {
	h := newHarness()
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "nice photo"))
	if len(h.platform.sent) != 0 {
		t.Fatalf("expected no response, got %+v", h.platform.sent)
	}
}

func TestHandleDirectMessage_NonMonitoredSenderIgnored(t *testing.T) {
	h := newHarness()
	for _, text := range []string{"!stop5", "!delete 1", "!stop nope"} {
		h.in.HandleDirectMessage(context.Background(), dm("3000", text))
	}
	if len(h.platform.sent) != 0 || len(h.platform.deleted) != 0 {
		t.Fatalf("non-monitored sender produced side effects: sent=%v deleted=%v", h.platform.sent, h.platform.deleted)
	}
	if !h.state.IsActive() {
		t.Fatal("non-monitored sender must not mute the bot")
	}
}

func TestHandleDirectMessage_WorksWhileMuted(t *testing.T) {
	h := newHarness()
	h.state.Mute(60)
	h.in.HandleDirectMessage(context.Background(), dm(monitoredID, "!delete 9"))
	if len(h.platform.deleted) != 1 {
		t.Fatal("delete must run while muted")
	}
}

func mentionPost(text, inReplyTo string) domain.Post {
	return domain.Post{ID: "cmd-1", AuthorID: "4000", AuthorHandle: "requester", Text: text, InReplyToID: inReplyTo}
}

func TestHandleMention_CaptionsOriginal(t *testing.T) {
	h := newHarness()
	h.platform.posts["cmd-1"] = mentionPost("@captionbot CAPTION this", "orig-1")

	if err := h.in.HandleMention(context.Background(), "cmd-1"); err != nil {
		t.Fatal(err)
	}
	if len(h.capt.jobs) != 1 {
		t.Fatalf("expected one pipeline invocation, got %d", len(h.capt.jobs))
	}
	want := pipeline.Job{SourcePostID: "orig-1", ReplyToID: "cmd-1", Handle: "requester", Reshare: false, RequireActive: true}
	if h.capt.jobs[0] != want {
		t.Errorf("job = %+v, want %+v", h.capt.jobs[0], want)
	}
}

func TestHandleMention_RejectedIndependently(t *testing.T) {
	cases := map[string]domain.Post{
		"no keyword": mentionPost("@captionbot hello", "orig-1"),
		"not reply":  mentionPost("@captionbot caption", ""),
		"no mention": mentionPost("caption this", "orig-1"),
	}
	for name, post := range cases {
		h := newHarness()
		h.platform.posts["cmd-1"] = post
		if err := h.in.HandleMention(context.Background(), "cmd-1"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(h.capt.jobs) != 0 {
			t.Errorf("%s: expected zero pipeline invocations, got %d", name, len(h.capt.jobs))
		}
	}
}

func TestHandleMention_MutedIgnored(t *testing.T) {
	h := newHarness()
	h.platform.posts["cmd-1"] = mentionPost("@captionbot caption", "orig-1")
	h.state.Mute(5)
	h.in.HandleMention(context.Background(), "cmd-1")
	if len(h.capt.jobs) != 0 {
		t.Fatal("mention handled while muted")
	}
}

func TestHandleMention_OwnPostIgnored(t *testing.T) {
	h := newHarness()
	p := mentionPost("@captionbot caption", "orig-1")
	p.AuthorID = botID
	h.platform.posts["cmd-1"] = p
	h.in.HandleMention(context.Background(), "cmd-1")
	if len(h.capt.jobs) != 0 {
		t.Fatal("bot must not answer its own posts")
	}
}

func TestHandleMention_FetchError(t *testing.T) {
	h := newHarness()
	h.platform.fetchErr = errors.New("timeout")
	if err := h.in.HandleMention(context.Background(), "cmd-1"); !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}
