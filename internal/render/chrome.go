package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// waitImagesJS resolves once every <img> on the page has loaded or failed.
const waitImagesJS = `Promise.all(Array.from(document.images).map(function (img) {
	if (img.complete) { return true; }
	return new Promise(function (resolve) { img.onload = img.onerror = function () { resolve(true); }; });
})).then(function () { return true; })`

// chromeSession launches a fresh headless Chrome per capture.
type chromeSession struct {
	execPath string
	logger   *slog.Logger
}

func newChromeSession(execPath string, logger *slog.Logger) *chromeSession {
	return &chromeSession{execPath: execPath, logger: logger}
}

// newContext creates an isolated browser and tab. The caller MUST call cancel().
func (s *chromeSession) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("hide-scrollbars", true),
	)
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

func (s *chromeSession) capture(ctx context.Context, html string, w, h, quality int) ([]byte, error) {
	taskCtx, cancel := s.newContext(ctx)
	defer cancel()

	var (
		buf    []byte
		loaded bool
	)
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(w), int64(h)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Evaluate(waitImagesJS, &loaded, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(int64(quality)).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome capture: %w", err)
	}
	return buf, nil
}
