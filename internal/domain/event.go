package domain

import "time"

// EventKind classifies events delivered by the stream and webhook.
type EventKind string

const (
	EventNewPost       EventKind = "new_post"
	EventDirectMessage EventKind = "direct_message"
	EventPostCreated   EventKind = "post_created"
)

// DirectMessage is a private message received by the bot account.
type DirectMessage struct {
	ID          string
	SenderID    string
	RecipientID string
	Text        string
}

// Event is a single notification routed by the event router.
type Event struct {
	Kind          EventKind
	Post          *Post          // set for EventNewPost
	PostID        string         // set for EventPostCreated
	DirectMessage *DirectMessage // set for EventDirectMessage
	ReceivedAt    time.Time
}

// EventBus carries events from the stream and webhook to the router.
type EventBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	Close()
}
