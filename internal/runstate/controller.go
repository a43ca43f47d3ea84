// Package runstate owns the bot's mute flag and the single pending
// auto-resume timer.
package runstate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"captionbot/internal/domain"
)

// MaxMuteMinutes bounds a single mute to one year.
const MaxMuteMinutes = 365 * 24 * 60

// ErrInvalidDuration is returned by Mute for durations outside [1, MaxMuteMinutes].
var ErrInvalidDuration = errors.New("invalid mute duration")

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// Config holds the controller's collaborators. Zero values use the real clock.
type Config struct {
	Logger    *slog.Logger
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) Timer
	// OnChange is called outside the lock after every transition.
	OnChange func(domain.RunState)
}

// Controller is a two-state machine: Active (initial) and Muted.
type Controller struct {
	mu       sync.Mutex
	active   bool
	resumeAt time.Time
	timer    Timer
	gen      uint64 // bumped on every mute; a timer only resumes its own generation

	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
	onChange  func(domain.RunState)
	logger    *slog.Logger
}

func New(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		active:    true,
		now:       cfg.Now,
		afterFunc: cfg.AfterFunc,
		onChange:  cfg.OnChange,
		logger:    cfg.Logger,
	}
}

// IsActive reports whether the bot reacts to new posts and caption requests.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Mute suspends the bot for the given number of minutes. Any pending resume
// timer is cancelled first; cleared reports whether one existed.
func (c *Controller) Mute(minutes int) (resumeAt time.Time, cleared bool, err error) {
	if minutes < 1 || minutes > MaxMuteMinutes {
		return time.Time{}, false, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}
	d := time.Duration(minutes) * time.Minute

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		cleared = true
	}
	c.gen++
	gen := c.gen
	c.active = false
	c.resumeAt = c.now().Add(d)
	c.timer = c.afterFunc(d, func() { c.resume(gen) })
	resumeAt = c.resumeAt
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("bot muted", "minutes", minutes, "resume_at", resumeAt.UTC(), "cleared_previous", cleared)
	c.changed(state)
	return resumeAt, cleared, nil
}

func (c *Controller) resume(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		// Superseded by a later mute; its Stop lost the race with this callback.
		c.mu.Unlock()
		return
	}
	c.active = true
	c.resumeAt = time.Time{}
	c.timer = nil
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("bot resumed")
	c.changed(state)
}

// Stop cancels a pending resume timer without changing state. Used on shutdown.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) snapshotLocked() domain.RunState {
	return domain.RunState{Active: c.active, ResumeAt: c.resumeAt}
}

func (c *Controller) changed(state domain.RunState) {
	if c.onChange != nil {
		c.onChange(state)
	}
}
