package twitter

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"captionbot/internal/bus"
	"captionbot/internal/domain"
)

const streamBody = `{"id_str":"1","text":"short","user":{"id_str":"1000","screen_name":"monitored"}}

{"delete":{"status":{"id_str":"5"}}}
not json
{"id_str":"2","text":"truncated…","truncated":true,"user":{"id_str":"1000","screen_name":"monitored"},"extended_tweet":{"full_text":"the whole text","extended_entities":{"media":[{"id_str":"m","media_url_https":"https://pbs/m.jpg","type":"photo"}]}}}
`

func TestDecodeStream(t *testing.T) {
	var posts []domain.Post
	n, err := decodeStream(strings.NewReader(streamBody), func(p domain.Post) { posts = append(posts, p) }, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", n)
	}
	if posts[0].ID != "1" || posts[0].Text != "short" {
		t.Errorf("first post = %+v", posts[0])
	}
	if posts[1].Text != "the whole text" || len(posts[1].Photos) != 1 {
		t.Errorf("extended tweet not unpacked: %+v", posts[1])
	}
}

func TestStream_PublishesNewPosts(t *testing.T) {
	var follow string
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST /stream/statuses/filter.json": func(w http.ResponseWriter, r *http.Request) {
			follow = r.PostFormValue("follow")
			w.Write([]byte(streamBody))
		},
	})
	b := bus.New(10, quiet())
	s := c.NewStream(StreamConfig{FollowID: "1000", Reconnect: time.Hour, Bus: b, Logger: quiet()})

	if err := s.consume(context.Background()); err == nil {
		t.Fatal("consume should report the end of the stream")
	}
	if follow != "1000" {
		t.Errorf("follow = %q", follow)
	}
	for _, want := range []string{"1", "2"} {
		select {
		case ev := <-b.Subscribe():
			if ev.Kind != domain.EventNewPost || ev.Post.ID != want {
				t.Errorf("unexpected event %+v", ev)
			}
		default:
			t.Fatalf("missing event for post %s", want)
		}
	}
}

func TestStream_RunStopsOnCancel(t *testing.T) {
	c, _ := newTestClient(t, nil)
	s := c.NewStream(StreamConfig{FollowID: "1", Reconnect: 10 * time.Millisecond, Bus: bus.New(1, quiet()), Logger: quiet()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
