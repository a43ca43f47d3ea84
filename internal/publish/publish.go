// Package publish uploads captioned images and posts them as replies.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"captionbot/internal/domain"
)

// Publisher posts rendered images as replies through the platform client.
type Publisher struct {
	client domain.MediaPublisher
	logger *slog.Logger
}

func New(client domain.MediaPublisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// ReplyText is the body of a captioned reply: a mention of handle.
func ReplyText(handle string) string {
	return "@" + strings.TrimPrefix(handle, "@")
}

// Publish uploads img and replies to replyToID mentioning handle. When
// reshare is set the new reply is also reshared; a reshare failure is only
// logged. Upload and post failures wrap domain.ErrPublish.
func (p *Publisher) Publish(ctx context.Context, img domain.RenderedImage, replyToID, handle string, reshare bool) (string, error) {
	mediaID, err := p.client.UploadMedia(ctx, img.Data)
	if err != nil {
		return "", fmt.Errorf("upload media: %w: %w", domain.ErrPublish, err)
	}

	replyID, err := p.client.PublishReply(ctx, ReplyText(handle), replyToID, mediaID)
	if err != nil {
		return "", fmt.Errorf("publish reply to %s: %w: %w", replyToID, domain.ErrPublish, err)
	}
	p.logger.Info("sent reply", "reply_id", replyID, "reply_to", replyToID, "media_id", mediaID)

	if reshare {
		if err := p.client.Reshare(ctx, replyID); err != nil {
			p.logger.Warn("reshare failed", "reply_id", replyID, "err", err)
		} else {
			p.logger.Info("reshared own reply", "reply_id", replyID)
		}
	}
	return replyID, nil
}
