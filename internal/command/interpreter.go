package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"captionbot/internal/domain"
	"captionbot/internal/metrics"
	"captionbot/internal/pipeline"
)

// Direct-message responses.
const (
	ErrorMessage   = "Sorry, I couldn't process your request"
	DeletedMessage = "Successfully deleted"
	ClearedPrefix  = "Cleared previous timeout, "
)

// ResumeMessage is the confirmation sent after a successful mute.
func ResumeMessage(resumeAt time.Time) string {
	return fmt.Sprintf("Bot will resume posting at %s (That's UTC)", resumeAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// RunState is the part of the run-state controller the interpreter uses.
type RunState interface {
	Mute(minutes int) (resumeAt time.Time, cleared bool, err error)
	IsActive() bool
}

// Captioner runs the captioning pipeline.
type Captioner interface {
	Caption(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

// Config wires an Interpreter to its collaborators.
type Config struct {
	State     RunState
	Captioner Captioner
	Fetcher   domain.PostFetcher
	Deleter   domain.PostDeleter
	Messenger domain.DirectMessenger

	MonitoredID string // only this account may send direct-message commands
	BotID       string // posts by this account never trigger a caption
	BotHandle   string

	Logger *slog.Logger
}

// Interpreter executes commands from direct messages and mentions.
type Interpreter struct {
	cfg    Config
	logger *slog.Logger
}

func NewInterpreter(cfg Config) *Interpreter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Interpreter{cfg: cfg, logger: cfg.Logger}
}

// HandleDirectMessage runs a Mute or Delete command sent by the monitored
// account and answers it by direct message. Messages from anyone else, and
// messages without a command, get no response. Mute state is not consulted.
func (in *Interpreter) HandleDirectMessage(ctx context.Context, dm domain.DirectMessage) error {
	if dm.SenderID != in.cfg.MonitoredID {
		in.logger.Debug("ignoring direct message from non-monitored sender", "sender_id", dm.SenderID)
		return nil
	}
	in.logger.Info("new dm", "text", dm.Text)

	response := in.execute(ctx, dm.Text)
	if response == "" {
		return nil
	}

	if err := in.cfg.Messenger.SendDirectMessage(ctx, in.cfg.MonitoredID, response); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	in.logger.Info("responded to dm", "text", dm.Text, "response", response)
	return nil
}

func (in *Interpreter) execute(ctx context.Context, text string) string {
	cmd, err := ParseDirectMessage(text)
	if err != nil {
		in.logger.Warn("malformed command", "text", text, "err", err)
		metrics.Failure(domain.Stage(err)).Inc()
		return ErrorMessage
	}
	if cmd == nil {
		return ""
	}
	metrics.Command(cmd.Name()).Inc()

	switch c := cmd.(type) {
	case Mute:
		resumeAt, cleared, err := in.cfg.State.Mute(c.Minutes)
		if err != nil {
			in.logger.Warn("mute failed", "minutes", c.Minutes, "err", err)
			return ErrorMessage
		}
		msg := ResumeMessage(resumeAt)
		if cleared {
			msg = ClearedPrefix + msg
		}
		return msg
	case Delete:
		if err := in.cfg.Deleter.DeletePost(ctx, c.PostID); err != nil {
			in.logger.Warn("delete failed", "post_id", c.PostID, "err", err)
			return ErrorMessage
		}
		in.logger.Info("deleted post", "post_id", c.PostID)
		return DeletedMessage
	default:
		return ""
	}
}

// HandleMention captions the post a mention replies to, when the mention asks
// for it and the bot is active. The reply goes to the mention, addressed to
// its author, and is never reshared.
func (in *Interpreter) HandleMention(ctx context.Context, postID string) error {
	if !in.cfg.State.IsActive() {
		in.logger.Debug("muted, ignoring mention", "post_id", postID)
		return nil
	}

	post, err := in.cfg.Fetcher.FetchPost(ctx, postID)
	if err != nil {
		if !errors.Is(err, domain.ErrFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrFetch, err)
		}
		return fmt.Errorf("fetch command post %s: %w", postID, err)
	}
	if in.cfg.BotID != "" && post.AuthorID == in.cfg.BotID {
		in.logger.Debug("ignoring own post", "post_id", postID)
		return nil
	}

	req, reason := ParseCaptionRequest(post, in.cfg.BotHandle)
	if reason != "" {
		in.logger.Debug("not a caption request", "post_id", postID, "reason", reason)
		return nil
	}
	metrics.Command(req.Name()).Inc()
	in.logger.Info("responding to caption command", "original", req.TargetPostID, "command_post", req.CommandPostID, "requester", req.RequesterHandle)

	_, err = in.cfg.Captioner.Caption(ctx, pipeline.Job{
		SourcePostID:  req.TargetPostID,
		ReplyToID:     req.CommandPostID,
		Handle:        req.RequesterHandle,
		Reshare:       false,
		RequireActive: true,
	})
	return err
}
