package command

import (
	"errors"
	"testing"

	"captionbot/internal/domain"
)

func TestParseDirectMessage(t *testing.T) {
	tests := []struct {
		text    string
		want    Command
		wantErr bool
	}{
		{"!stop5", Mute{Minutes: 5}, false},
		{"!stop 30", Mute{Minutes: 30}, false},
		{"please !stop 15 minutes", Mute{Minutes: 15}, false},
		{"!stop+7", Mute{Minutes: 7}, false},
		{"!stop", nil, true},
		{"!stop abc", nil, true},
		{"!stop0", nil, true},
		{"!stop -5", nil, true},
		{"!stop 99999999999999999999", nil, true},
		{"!delete 12345", Delete{PostID: "12345"}, false},
		{"!delete12345", Delete{PostID: "12345"}, false},
		{"!delete  987 thanks", Delete{PostID: "987"}, false},
		{"!delete", nil, true},
		{"!stop5 !delete 1", Mute{Minutes: 5}, false},
		{"hello there", nil, false},
		{"", nil, false},
		{"!STOP5", nil, false},
	}
	for _, tt := range tests {
		got, err := ParseDirectMessage(tt.text)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrParse) {
				t.Errorf("ParseDirectMessage(%q): expected ErrParse, got %v", tt.text, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDirectMessage(%q): unexpected error %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDirectMessage(%q) = %#v, want %#v", tt.text, got, tt.want)
		}
	}
}

func TestParseCaptionRequest(t *testing.T) {
	base := domain.Post{
		ID:           "cmd-1",
		AuthorHandle: "requester",
		Text:         "@CaptionBot caption this please",
		InReplyToID:  "orig-1",
	}

	req, reason := ParseCaptionRequest(base, "captionbot")
	if reason != "" {
		t.Fatalf("expected request, rejected: %s", reason)
	}
	want := CaptionRequest{TargetPostID: "orig-1", RequesterHandle: "requester", CommandPostID: "cmd-1"}
	if req != want {
		t.Fatalf("got %+v, want %+v", req, want)
	}

	tests := []struct {
		name   string
		mutate func(p *domain.Post)
		reason string
	}{
		{"missing mention", func(p *domain.Post) { p.Text = "caption this please" }, RejectNoMention},
		{"other handle", func(p *domain.Post) { p.Text = "@someoneelse caption" }, RejectNoMention},
		{"missing keyword", func(p *domain.Post) { p.Text = "@captionbot do something" }, RejectNoKeyword},
		{"not a reply", func(p *domain.Post) { p.InReplyToID = "" }, RejectNotReply},
	}
	for _, tt := range tests {
		p := base
		tt.mutate(&p)
		if _, reason := ParseCaptionRequest(p, "captionbot"); reason != tt.reason {
			t.Errorf("%s: reason = %q, want %q", tt.name, reason, tt.reason)
		}
	}

	if _, reason := ParseCaptionRequest(base, "@CaptionBot"); reason != "" {
		t.Errorf("handle with @ prefix should match, got %q", reason)
	}
	if _, reason := ParseCaptionRequest(base, ""); reason != RejectNoMention {
		t.Errorf("empty bot handle must never match, got %q", reason)
	}
}
