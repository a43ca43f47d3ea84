package twitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"captionbot/internal/domain"
)

const (
	defaultReconnect = 10 * time.Second
	maxStreamLine    = 1 << 20
)

// StreamConfig configures a filtered status stream.
type StreamConfig struct {
	FollowID  string // user id whose posts are streamed
	Reconnect time.Duration
	Bus       domain.EventBus
	Logger    *slog.Logger
}

// Stream follows one account's posts and publishes them as new_post events.
type Stream struct {
	client    *Client
	followID  string
	reconnect time.Duration
	bus       domain.EventBus
	logger    *slog.Logger
}

func (c *Client) NewStream(cfg StreamConfig) *Stream {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = defaultReconnect
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return &Stream{
		client:    c,
		followID:  cfg.FollowID,
		reconnect: cfg.Reconnect,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
	}
}

// Run keeps the stream connected until ctx is cancelled, waiting a fixed
// delay between reconnects.
func (s *Stream) Run(ctx context.Context) error {
	s.logger.Info("status stream starting", "follow", s.followID)
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			s.logger.Info("status stream stopped")
			return nil
		}
		s.logger.Warn("status stream disconnected, reconnecting", "err", err, "delay", s.reconnect)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnect):
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	form := url.Values{"follow": {s.followID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.streamBase+"/statuses/filter.json",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp, "/statuses/filter.json")
	}
	s.logger.Info("status stream connected")

	n, err := decodeStream(resp.Body, func(p domain.Post) {
		s.bus.Publish(domain.Event{Kind: domain.EventNewPost, Post: &p})
	}, s.logger)
	if err == nil {
		err = io.EOF
	}
	return fmt.Errorf("stream ended after %d posts: %w", n, err)
}

// decodeStream reads newline-delimited statuses from r and calls emit for
// each one. Keep-alive blank lines and non-status notices are skipped.
func decodeStream(r io.Reader, emit func(domain.Post), logger *slog.Logger) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxStreamLine)
	n := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var t apiTweet
		if err := json.Unmarshal(line, &t); err != nil {
			logger.Warn("skipping undecodable stream message", "err", err)
			continue
		}
		if t.IDStr == "" || t.User.IDStr == "" {
			logger.Debug("skipping stream notice", "message", truncate(string(line), 120))
			continue
		}
		emit(t.toPost())
		n++
	}
	return n, sc.Err()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
