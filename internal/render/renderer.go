// Package render composites a caption onto a photo by loading an HTML
// template into headless Chrome and screenshotting it.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"captionbot/internal/domain"
	"captionbot/internal/metrics"

	"github.com/google/uuid"
)

// Defaults for Config.
const (
	DefaultQuality = 50
	DefaultTimeout = 60 * time.Second
	DefaultCaption = "me irl"
)

// Config configures a Renderer.
type Config struct {
	Template      *Template // nil loads the embedded default
	Caption       string
	MaxDimension  int
	PaddingWidth  int
	PaddingHeight int
	Quality       int // JPEG quality, 1-100
	Timeout       time.Duration
	ChromePath    string // empty uses the chromedp lookup
	OutputDir     string // when set, every render is also written here
	Logger        *slog.Logger
}

// captureFunc loads html into a browser sized w x h and returns a JPEG screenshot.
type captureFunc func(ctx context.Context, html string, w, h, quality int) ([]byte, error)

// Renderer turns original photos into captioned JPEGs.
type Renderer struct {
	cfg     Config
	tmpl    *Template
	capture captureFunc
	logger  *slog.Logger
}

func New(cfg Config) (*Renderer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Caption == "" {
		cfg.Caption = DefaultCaption
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	if cfg.PaddingWidth <= 0 {
		cfg.PaddingWidth = DefaultPaddingWidth
	}
	if cfg.PaddingHeight <= 0 {
		cfg.PaddingHeight = DefaultPaddingHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	tmpl := cfg.Template
	if tmpl == nil {
		var err error
		if tmpl, err = LoadTemplate(""); err != nil {
			return nil, err
		}
	}
	r := &Renderer{cfg: cfg, tmpl: tmpl, logger: cfg.Logger}
	r.capture = newChromeSession(cfg.ChromePath, cfg.Logger).capture
	return r, nil
}

// Render produces the captioned composite for original. The browser session
// is bounded by the configured timeout and always torn down. Every failure
// wraps domain.ErrRender.
func (r *Renderer) Render(ctx context.Context, original []byte) (domain.RenderedImage, error) {
	start := time.Now()

	w, h, format, err := Dimensions(original)
	if err != nil {
		return domain.RenderedImage{}, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	sw, sh := FitWithin(w, h, r.cfg.MaxDimension)
	vw, vh := Viewport(sw, sh, r.cfg.PaddingWidth, r.cfg.PaddingHeight)

	html, err := r.tmpl.Execute(PageData{
		Image:   DataURL(http.DetectContentType(original), original),
		Caption: r.cfg.Caption,
		Width:   sw,
		Height:  sh,
	})
	if err != nil {
		return domain.RenderedImage{}, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	data, err := r.capture(ctx, html, vw, vh, r.cfg.Quality)
	if err != nil {
		return domain.RenderedImage{}, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	if len(data) == 0 {
		return domain.RenderedImage{}, fmt.Errorf("%w: empty screenshot", domain.ErrRender)
	}

	elapsed := time.Since(start)
	metrics.RenderLatency.Observe(elapsed.Seconds())
	r.logger.Info("rendered caption",
		"format", format,
		"original", fmt.Sprintf("%dx%d", w, h),
		"scaled", fmt.Sprintf("%dx%d", sw, sh),
		"viewport", fmt.Sprintf("%dx%d", vw, vh),
		"bytes", len(data),
		"duration", elapsed,
	)

	img := domain.RenderedImage{Data: data, ContentType: "image/jpeg", Width: vw, Height: vh}
	if r.cfg.OutputDir != "" {
		if path, err := r.save(img); err != nil {
			r.logger.Warn("failed to keep rendered copy", "dir", r.cfg.OutputDir, "err", err)
		} else {
			r.logger.Debug("kept rendered copy", "path", path)
		}
	}
	return img, nil
}

func (r *Renderer) save(img domain.RenderedImage) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.cfg.OutputDir, time.Now().UTC().Format("20060102-150405")+"-"+uuid.NewString()[:8]+"-captioned.jpeg")
	return path, os.WriteFile(path, img.Data, 0o644)
}
