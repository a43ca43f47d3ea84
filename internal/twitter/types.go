package twitter

import (
	"fmt"
	"strings"
	"time"

	"captionbot/internal/domain"
)

// createdAtLayout is the v1.1 timestamp format.
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

type apiUser struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

type apiMedia struct {
	IDStr         string `json:"id_str"`
	MediaURLHTTPS string `json:"media_url_https"`
	Type          string `json:"type"`
}

type apiEntities struct {
	Media []apiMedia `json:"media"`
}

type apiTweet struct {
	IDStr                string       `json:"id_str"`
	Text                 string       `json:"text"`
	FullText             string       `json:"full_text"`
	InReplyToStatusIDStr string       `json:"in_reply_to_status_id_str"`
	CreatedAt            string       `json:"created_at"`
	User                 apiUser      `json:"user"`
	ExtendedEntities     *apiEntities `json:"extended_entities"`
	// Streamed tweets over 140 characters carry the full payload here.
	ExtendedTweet *struct {
		FullText         string       `json:"full_text"`
		ExtendedEntities *apiEntities `json:"extended_entities"`
	} `json:"extended_tweet"`
}

func (t apiTweet) toPost() domain.Post {
	text := t.FullText
	entities := t.ExtendedEntities
	if t.ExtendedTweet != nil {
		if t.ExtendedTweet.FullText != "" {
			text = t.ExtendedTweet.FullText
		}
		if t.ExtendedTweet.ExtendedEntities != nil {
			entities = t.ExtendedTweet.ExtendedEntities
		}
	}
	if text == "" {
		text = t.Text
	}

	p := domain.Post{
		ID:           t.IDStr,
		AuthorID:     t.User.IDStr,
		AuthorHandle: t.User.ScreenName,
		Text:         text,
		InReplyToID:  t.InReplyToStatusIDStr,
	}
	if ts, err := time.Parse(createdAtLayout, t.CreatedAt); err == nil {
		p.CreatedAt = ts
	}
	if entities != nil {
		for _, m := range entities.Media {
			p.Photos = append(p.Photos, domain.Photo{ID: m.IDStr, URL: m.MediaURLHTTPS, Type: m.Type})
		}
	}
	return p
}

type uploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

type dmMessageCreate struct {
	Target struct {
		RecipientID string `json:"recipient_id"`
	} `json:"target"`
	SenderID    string `json:"sender_id,omitempty"`
	MessageData struct {
		Text string `json:"text"`
	} `json:"message_data"`
}

type dmEvent struct {
	Type          string          `json:"type"`
	ID            string          `json:"id,omitempty"`
	MessageCreate dmMessageCreate `json:"message_create"`
}

type dmRequest struct {
	Event dmEvent `json:"event"`
}

func (e dmEvent) toDirectMessage() domain.DirectMessage {
	return domain.DirectMessage{
		ID:          e.ID,
		SenderID:    e.MessageCreate.SenderID,
		RecipientID: e.MessageCreate.Target.RecipientID,
		Text:        e.MessageCreate.MessageData.Text,
	}
}

// activityPayload is one Account Activity webhook delivery.
type activityPayload struct {
	ForUserID           string     `json:"for_user_id"`
	DirectMessageEvents []dmEvent  `json:"direct_message_events"`
	TweetCreateEvents   []apiTweet `json:"tweet_create_events"`
}

// Webhook is a registered Account Activity webhook.
type Webhook struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Valid     bool   `json:"valid"`
	CreatedAt string `json:"created_timestamp"`
}

// APIError is a non-2xx response from the platform API.
type APIError struct {
	StatusCode int    `json:"-"`
	Endpoint   string `json:"-"`
	Errors     []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Body string `json:"-"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, strings.TrimSpace(e.Body))
	}
	msgs := make([]string, len(e.Errors))
	for i, m := range e.Errors {
		msgs[i] = fmt.Sprintf("%d %s", m.Code, m.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, strings.Join(msgs, "; "))
}
