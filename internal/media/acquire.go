// Package media finds the photos attached to a post and downloads them.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"captionbot/internal/domain"
	"captionbot/internal/httpclient"
)

// DefaultMaxBytes caps a single photo download.
const DefaultMaxBytes = 20 << 20

// Config configures an Acquirer.
type Config struct {
	Fetcher  domain.PostFetcher
	Client   *http.Client // defaults to httpclient.Shared(Timeout)
	Timeout  time.Duration
	MaxBytes int64
	Logger   *slog.Logger
}

// Acquirer fetches posts and downloads their photos into memory.
type Acquirer struct {
	fetcher  domain.PostFetcher
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

func New(cfg Config) *Acquirer {
	if cfg.Client == nil {
		cfg.Client = httpclient.Shared(cfg.Timeout)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Acquirer{
		fetcher:  cfg.Fetcher,
		client:   cfg.Client,
		maxBytes: cfg.MaxBytes,
		logger:   cfg.Logger,
	}
}

// Photos fetches the post and returns its photo attachments in order.
// A post without photos yields an empty slice and no error.
func (a *Acquirer) Photos(ctx context.Context, postID string) ([]domain.Photo, error) {
	post, err := a.fetcher.FetchPost(ctx, postID)
	if err != nil {
		if errors.Is(err, domain.ErrFetch) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch post %s: %w: %w", postID, domain.ErrFetch, err)
	}
	photos := FilterPhotos(post.Photos)
	a.logger.Debug("photos in post", "post_id", postID, "count", len(photos), "attachments", len(post.Photos))
	return photos, nil
}

// FilterPhotos keeps only attachments of type photo, preserving order.
func FilterPhotos(attachments []domain.Photo) []domain.Photo {
	photos := make([]domain.Photo, 0, len(attachments))
	for _, p := range attachments {
		if p.Type == domain.MediaTypePhoto {
			photos = append(photos, p)
		}
	}
	return photos
}

// Download reads the photo into memory. Transport failures, non-2xx
// responses and bodies over the size cap wrap domain.ErrDownload.
func (a *Acquirer) Download(ctx context.Context, photo domain.Photo) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photo.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w: %w", photo.URL, domain.ErrDownload, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w: %w", photo.URL, domain.ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download %s: %w: HTTP %d", photo.URL, domain.ErrDownload, resp.StatusCode)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w: %w", photo.URL, domain.ErrDownload, err)
	}
	if n > a.maxBytes {
		return nil, fmt.Errorf("download %s: %w: larger than %d bytes", photo.URL, domain.ErrDownload, a.maxBytes)
	}
	if n == 0 {
		return nil, fmt.Errorf("download %s: %w: empty body", photo.URL, domain.ErrDownload)
	}
	a.logger.Debug("downloaded photo", "photo_id", photo.ID, "bytes", n)
	return buf.Bytes(), nil
}
