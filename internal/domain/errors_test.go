package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestStage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("download https://x/y.jpg: %w: %w", ErrDownload, errors.New("eof")), "download"},
		{fmt.Errorf("render: %w", ErrRender), "render"},
		{fmt.Errorf("upload: %w", ErrPublish), "publish"},
		{ErrFetch, "fetch"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := Stage(tt.err); got != tt.want {
			t.Errorf("Stage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
