// Package pipeline runs the captioning sequence (acquire, render, publish)
// for every photo of one post.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"captionbot/internal/domain"
	"captionbot/internal/ledger"
	"captionbot/internal/metrics"

	"github.com/google/uuid"
)

// Acquirer finds and downloads photos.
type Acquirer interface {
	Photos(ctx context.Context, postID string) ([]domain.Photo, error)
	Download(ctx context.Context, photo domain.Photo) ([]byte, error)
}

// Renderer captions one photo.
type Renderer interface {
	Render(ctx context.Context, original []byte) (domain.RenderedImage, error)
}

// Publisher posts one captioned photo as a reply.
type Publisher interface {
	Publish(ctx context.Context, img domain.RenderedImage, replyToID, handle string, reshare bool) (string, error)
}

// Ledger records outcomes and answers duplicate lookups.
type Ledger interface {
	Record(ctx context.Context, e ledger.Entry) error
	Published(ctx context.Context, mediaURL, replyToID string) (bool, error)
}

// Job describes one pipeline invocation.
type Job struct {
	SourcePostID string // post whose photos are captioned
	ReplyToID    string // post the replies target; defaults to SourcePostID
	Handle       string // handle mentioned in each reply
	Reshare      bool

	// RequireActive drops the job if the bot was muted while it waited for
	// the pipeline.
	RequireActive bool
}

// Gate reports whether the bot is active.
type Gate interface {
	IsActive() bool
}

// Result summarizes one invocation.
type Result struct {
	InvocationID string
	Photos       int
	Replies      []string
	Skipped      int
	Failed       int
	Muted        bool
}

// Config configures a Captioner. Gate, Ledger and Notifier are optional.
type Config struct {
	Gate           Gate
	Acquirer       Acquirer
	Renderer       Renderer
	Publisher      Publisher
	Ledger         Ledger
	SkipDuplicates bool
	Notifier       domain.Notifier
	Logger         *slog.Logger
}

// Captioner runs jobs one at a time; concurrent callers queue on a mutex.
type Captioner struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Captioner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Captioner{cfg: cfg, log: cfg.Logger}
}

// Caption captions every photo of job.SourcePostID in order. A failing photo
// is logged and skipped. Only a failure to fetch the post is returned.
func (c *Captioner) Caption(ctx context.Context, job Job) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job.ReplyToID == "" {
		job.ReplyToID = job.SourcePostID
	}
	res := Result{InvocationID: uuid.NewString()}
	logger := c.log.With("invocation", res.InvocationID, "post_id", job.SourcePostID)
	if job.RequireActive && c.cfg.Gate != nil && !c.cfg.Gate.IsActive() {
		logger.Info("muted while queued, dropping job")
		res.Muted = true
		return res, nil
	}
	metrics.PipelineRuns.Inc()

	photos, err := c.cfg.Acquirer.Photos(ctx, job.SourcePostID)
	if err != nil {
		metrics.Failure(domain.Stage(err)).Inc()
		logger.Error("cannot list photos", "err", err)
		return res, err
	}
	res.Photos = len(photos)
	logger.Info("photo(s) in post", "count", len(photos), "reply_to", job.ReplyToID, "reshare", job.Reshare)

	for i, photo := range photos {
		if err := ctx.Err(); err != nil {
			logger.Warn("invocation cancelled", "remaining", len(photos)-i, "err", err)
			res.Failed += len(photos) - i
			break
		}
		replyID, skipped, renderTime, err := c.captionPhoto(ctx, job, photo)
		switch {
		case err != nil:
			res.Failed++
			stage := domain.Stage(err)
			metrics.Failure(stage).Inc()
			logger.Error("didn't manage to caption photo", "photo_id", photo.ID, "url", photo.URL, "stage", stage, "err", err)
			c.record(ctx, logger, ledger.Entry{
				InvocationID: res.InvocationID, SourcePostID: job.SourcePostID, PhotoID: photo.ID,
				MediaURL: photo.URL, ReplyToID: job.ReplyToID, Handle: job.Handle,
				Status: ledger.StatusFailed, Stage: stage, Error: err.Error(), RenderMS: renderTime.Milliseconds(),
			})
			c.notify(ctx, logger, fmt.Sprintf("Caption failed for post %s photo %s (%s): %v", job.SourcePostID, photo.ID, stage, err))
		case skipped:
			res.Skipped++
			metrics.DuplicatesSkip.Inc()
			logger.Info("photo already captioned for this target, skipping", "photo_id", photo.ID)
		default:
			res.Replies = append(res.Replies, replyID)
			metrics.PhotosCaptioned.Inc()
			c.record(ctx, logger, ledger.Entry{
				InvocationID: res.InvocationID, SourcePostID: job.SourcePostID, PhotoID: photo.ID,
				MediaURL: photo.URL, ReplyToID: job.ReplyToID, ReplyID: replyID, Handle: job.Handle,
				Status: ledger.StatusPublished, RenderMS: renderTime.Milliseconds(),
			})
		}
	}

	logger.Info("pipeline finished", "published", len(res.Replies), "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

func (c *Captioner) captionPhoto(ctx context.Context, job Job, photo domain.Photo) (replyID string, skipped bool, renderTime time.Duration, err error) {
	if c.cfg.Ledger != nil && c.cfg.SkipDuplicates {
		done, err := c.cfg.Ledger.Published(ctx, photo.URL, job.ReplyToID)
		if err != nil {
			c.log.Warn("ledger lookup failed, captioning anyway", "photo_id", photo.ID, "err", err)
		} else if done {
			return "", true, 0, nil
		}
	}

	original, err := c.cfg.Acquirer.Download(ctx, photo)
	if err != nil {
		return "", false, 0, err
	}

	start := time.Now()
	img, err := c.cfg.Renderer.Render(ctx, original)
	renderTime = time.Since(start)
	if err != nil {
		if !errors.Is(err, domain.ErrRender) {
			err = fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
		return "", false, renderTime, err
	}

	replyID, err = c.cfg.Publisher.Publish(ctx, img, job.ReplyToID, job.Handle, job.Reshare)
	if err != nil {
		if !errors.Is(err, domain.ErrPublish) {
			err = fmt.Errorf("%w: %w", domain.ErrPublish, err)
		}
		return "", false, renderTime, err
	}
	return replyID, false, renderTime, nil
}

func (c *Captioner) record(ctx context.Context, logger *slog.Logger, e ledger.Entry) {
	if c.cfg.Ledger == nil {
		return
	}
	if err := c.cfg.Ledger.Record(ctx, e); err != nil {
		logger.Warn("failed to record ledger entry", "photo_id", e.PhotoID, "err", err)
	}
}

func (c *Captioner) notify(ctx context.Context, logger *slog.Logger, text string) {
	if c.cfg.Notifier == nil {
		return
	}
	if err := c.cfg.Notifier.Notify(ctx, text); err != nil {
		logger.Warn("operator alert failed", "err", err)
	}
}
