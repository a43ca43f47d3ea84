package domain

import "errors"

// Error kinds. Concrete errors wrap one of these, so callers match with errors.Is.
var (
	ErrFetch    = errors.New("fetch failed")
	ErrDownload = errors.New("download failed")
	ErrRender   = errors.New("render failed")
	ErrPublish  = errors.New("publish failed")
	ErrParse    = errors.New("parse failed")
	ErrConfig   = errors.New("invalid configuration")
)

// Stage returns a short label for the error kind wrapped by err, or "unknown".
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrRender):
		return "render"
	case errors.Is(err, ErrPublish):
		return "publish"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrConfig):
		return "config"
	default:
		return "unknown"
	}
}
