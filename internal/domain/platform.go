package domain

import "context"

// PostFetcher retrieves full (extended) posts.
type PostFetcher interface {
	FetchPost(ctx context.Context, id string) (Post, error)
}

// MediaPublisher uploads media and publishes replies on the bot's behalf.
type MediaPublisher interface {
	UploadMedia(ctx context.Context, data []byte) (string, error)
	PublishReply(ctx context.Context, text, replyToID, mediaID string) (string, error)
	Reshare(ctx context.Context, postID string) error
}

// PostDeleter removes posts made by the bot.
type PostDeleter interface {
	DeletePost(ctx context.Context, id string) error
}

// DirectMessenger sends private messages.
type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, recipientID, text string) error
}

// Notifier delivers operator alerts to an out-of-band channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
