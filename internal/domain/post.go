package domain

import "time"

// MediaTypePhoto is the attachment type the captioning pipeline accepts.
const MediaTypePhoto = "photo"

// Post is a single published item on the platform.
type Post struct {
	ID           string
	AuthorID     string
	AuthorHandle string
	Text         string
	Photos       []Photo // attachments of every media type, in platform order
	InReplyToID  string  // empty when the post is not a reply
	CreatedAt    time.Time
}

// IsReply reports whether the post replies to another post.
func (p Post) IsReply() bool { return p.InReplyToID != "" }

// Photo is a reference to an attachment that can be downloaded.
type Photo struct {
	ID   string
	URL  string
	Type string
}

// User identifies an account on the platform.
type User struct {
	ID     string
	Handle string
}

// RenderedImage is a captioned composite ready for upload.
type RenderedImage struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// RunState is a point-in-time view of the bot's mute state.
type RunState struct {
	Active   bool      `json:"active"`
	ResumeAt time.Time `json:"resume_at,omitzero"` // zero when no resume is scheduled
}
