// Package command parses bot commands out of direct messages and mention
// posts and executes them.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"captionbot/internal/domain"
)

// Direct-message command tokens.
const (
	StopToken   = "!stop"
	DeleteToken = "!delete"
)

// CaptionKeyword must appear in a mention post for it to count as a caption request.
const CaptionKeyword = "caption"

// Command is one of Mute, Delete or CaptionRequest.
type Command interface {
	Name() string
	command()
}

// Mute suspends automatic captioning for Minutes.
type Mute struct {
	Minutes int
}

// Delete removes one of the bot's posts.
type Delete struct {
	PostID string
}

// CaptionRequest asks the bot to caption TargetPostID and reply to CommandPostID.
type CaptionRequest struct {
	TargetPostID    string
	RequesterHandle string
	CommandPostID   string
}

func (Mute) Name() string           { return "mute" }
func (Delete) Name() string         { return "delete" }
func (CaptionRequest) Name() string { return "caption" }

func (Mute) command()           {}
func (Delete) command()         {}
func (CaptionRequest) command() {}

// ParseDirectMessage extracts a Mute or Delete command from text. The stop
// token is checked first and may appear anywhere in the text. Text without a
// token returns (nil, nil). A token with a malformed argument returns an
// error wrapping domain.ErrParse.
func ParseDirectMessage(text string) (Command, error) {
	if _, rest, ok := strings.Cut(text, StopToken); ok {
		minutes, err := leadingInt(rest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", StopToken, domain.ErrParse, err)
		}
		if minutes < 1 {
			return nil, fmt.Errorf("%s: %w: duration must be at least one minute, got %d", StopToken, domain.ErrParse, minutes)
		}
		return Mute{Minutes: minutes}, nil
	}
	if _, rest, ok := strings.Cut(text, DeleteToken); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%s: %w: missing post id", DeleteToken, domain.ErrParse)
		}
		return Delete{PostID: fields[0]}, nil
	}
	return nil, nil
}

// leadingInt parses an optionally signed integer at the start of s after
// skipping whitespace. Trailing text is ignored.
func leadingInt(s string) (int, error) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("no number in %q", s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Rejection reasons reported by ParseCaptionRequest.
const (
	RejectNoMention = "bot not mentioned"
	RejectNoKeyword = "no caption keyword"
	RejectNotReply  = "not a reply"
)

// ParseCaptionRequest decides whether post asks the bot to caption the post
// it replies to. Matching is case-insensitive and the keyword must appear
// outside the mention. When it does not, reason names the first failed
// condition.
func ParseCaptionRequest(post domain.Post, botHandle string) (req CaptionRequest, reason string) {
	text := strings.ToLower(post.Text)
	mention := "@" + strings.ToLower(strings.TrimPrefix(botHandle, "@"))
	if botHandle == "" || !strings.Contains(text, mention) {
		return CaptionRequest{}, RejectNoMention
	}
	// The handle itself may contain the keyword.
	if !strings.Contains(strings.ReplaceAll(text, mention, " "), CaptionKeyword) {
		return CaptionRequest{}, RejectNoKeyword
	}
	if !post.IsReply() {
		return CaptionRequest{}, RejectNotReply
	}
	return CaptionRequest{
		TargetPostID:    post.InReplyToID,
		RequesterHandle: post.AuthorHandle,
		CommandPostID:   post.ID,
	}, ""
}
