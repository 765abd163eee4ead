package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/solutiontech/catalog-sync/internal/browser"
)

// captureFailure writes a best-effort screenshot of a failed product page.
// Drivers without rendering quietly decline; nothing here can fail the run.
func (r *Runner) captureFailure(ctx context.Context, page browser.Page) {
	if r.cfg.ScreenshotDir == "" {
		return
	}

	img, err := page.Screenshot(ctx)
	if err != nil {
		if !eris.Is(err, browser.ErrScreenshotUnsupported) {
			zap.L().Debug("crawl: failure screenshot unavailable", zap.Error(err))
		}
		return
	}

	if err := os.MkdirAll(r.cfg.ScreenshotDir, 0o755); err != nil {
		zap.L().Warn("crawl: create screenshot dir", zap.Error(err))
		return
	}

	name := fmt.Sprintf("failed_%s.png", time.Now().Format("20060102T150405.000"))
	path := filepath.Join(r.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		zap.L().Warn("crawl: write failure screenshot", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("crawl: wrote failure screenshot", zap.String("path", path))
}
