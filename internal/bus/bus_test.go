package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"captionbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBus_PublishSubscribeInOrder(t *testing.T) {
	b := New(4, testLogger())
	b.Publish(domain.Event{Kind: domain.EventNewPost, Post: &domain.Post{ID: "1"}})
	b.Publish(domain.Event{Kind: domain.EventPostCreated, PostID: "2"})

	ch := b.Subscribe()
	first := <-ch
	second := <-ch
	if first.Kind != domain.EventNewPost || first.Post.ID != "1" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if second.Kind != domain.EventPostCreated || second.PostID != "2" {
		t.Fatalf("unexpected second event: %+v", second)
	}
	if first.ReceivedAt.IsZero() {
		t.Error("Publish should stamp ReceivedAt")
	}
}

func TestBus_CloseEndsSubscription(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Close() // second close is a no-op

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("expected closed channel")
	}
	// publishing after close must not panic
	b.Publish(domain.Event{Kind: domain.EventNewPost})
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New(1, testLogger())
	b.timeout = 20 * time.Millisecond

	b.Publish(domain.Event{Kind: domain.EventPostCreated, PostID: "kept"})
	start := time.Now()
	b.Publish(domain.Event{Kind: domain.EventPostCreated, PostID: "dropped"})
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("expected publish to wait before dropping")
	}

	ev := <-b.Subscribe()
	if ev.PostID != "kept" {
		t.Fatalf("expected kept event, got %q", ev.PostID)
	}
	select {
	case ev := <-b.Subscribe():
		t.Fatalf("expected no more events, got %+v", ev)
	default:
	}
}
