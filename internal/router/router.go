// Package router dispatches platform events to the captioning pipeline and
// the command interpreter.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"captionbot/internal/domain"
	"captionbot/internal/metrics"
	"captionbot/internal/pipeline"
)

const (
	defaultConcurrency = 4
	defaultQueueSize   = 100
)

// Gate reports whether the bot reacts to new posts.
type Gate interface {
	IsActive() bool
}

// Captioner runs the captioning pipeline.
type Captioner interface {
	Caption(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

// Interpreter executes direct-message and mention commands.
type Interpreter interface {
	HandleDirectMessage(ctx context.Context, dm domain.DirectMessage) error
	HandleMention(ctx context.Context, postID string) error
}

// Config holds the router's dependencies.
type Config struct {
	Bus             domain.EventBus
	State           Gate
	Captioner       Captioner
	Interpreter     Interpreter
	MonitoredID     string
	MonitoredHandle string
	Concurrency     int // caption handlers at once; pipeline runs are still serialized
	QueueSize       int // caption events waiting for a handler before new ones are dropped
	Logger          *slog.Logger
}

// Router is the top-level event dispatcher.
type Router struct {
	cfg         Config
	concurrency int
	logger      *slog.Logger
}

func New(cfg Config) *Router {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{cfg: cfg, concurrency: cfg.Concurrency, logger: cfg.Logger}
}

// Run consumes events from the bus until ctx is cancelled or the bus is
// closed, then waits for in-flight handlers. Direct messages are handled as
// they arrive. Caption events go through a bounded queue served by
// Concurrency workers, so queued captions never delay a command.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("event router started", "concurrency", r.concurrency, "queue", r.cfg.QueueSize)

	queue := make(chan domain.Event, r.cfg.QueueSize)
	events := r.cfg.Bus.Subscribe()
	var wg sync.WaitGroup
	defer wg.Wait()
	defer close(queue)

	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range queue {
				if ctx.Err() != nil {
					continue
				}
				r.dispatch(ctx, ev)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event router stopping")
			return
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("event channel closed, router stopping")
				return
			}
			if ev.Kind == domain.EventDirectMessage {
				wg.Add(1)
				go func() {
					defer wg.Done()
					r.dispatch(ctx, ev)
				}()
				continue
			}
			select {
			case queue <- ev:
			default:
				r.logger.Warn("caption queue full, dropping event", "kind", ev.Kind, "post_id", eventPostID(ev))
			}
		}
	}
}

func (r *Router) dispatch(ctx context.Context, ev domain.Event) {
	if err := r.Handle(ctx, ev); err != nil {
		r.logger.Error("event handling failed", "kind", ev.Kind, "stage", domain.Stage(err), "err", err)
	}
}

func eventPostID(ev domain.Event) string {
	if ev.Post != nil {
		return ev.Post.ID
	}
	return ev.PostID
}

// Handle routes a single event.
func (r *Router) Handle(ctx context.Context, ev domain.Event) error {
	metrics.Event(string(ev.Kind)).Inc()

	switch ev.Kind {
	case domain.EventNewPost:
		if ev.Post == nil {
			return fmt.Errorf("new_post event without post")
		}
		return r.handleNewPost(ctx, *ev.Post)
	case domain.EventDirectMessage:
		if ev.DirectMessage == nil {
			return fmt.Errorf("direct_message event without message")
		}
		return r.cfg.Interpreter.HandleDirectMessage(ctx, *ev.DirectMessage)
	case domain.EventPostCreated:
		if ev.PostID == "" {
			return fmt.Errorf("post_created event without post id")
		}
		return r.cfg.Interpreter.HandleMention(ctx, ev.PostID)
	default:
		r.logger.Warn("unknown event kind", "kind", ev.Kind)
		return nil
	}
}

func (r *Router) handleNewPost(ctx context.Context, post domain.Post) error {
	if !r.cfg.State.IsActive() {
		r.logger.Debug("muted, ignoring new post", "post_id", post.ID)
		return nil
	}
	if post.AuthorID != r.cfg.MonitoredID {
		r.logger.Debug("ignoring post by other author", "post_id", post.ID, "author_id", post.AuthorID)
		return nil
	}
	r.logger.Info("new post", "post_id", post.ID, "text", post.Text)

	_, err := r.cfg.Captioner.Caption(ctx, pipeline.Job{
		SourcePostID:  post.ID,
		Handle:        r.cfg.MonitoredHandle,
		Reshare:       true,
		RequireActive: true,
	})
	return err
}
