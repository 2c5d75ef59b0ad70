// Package diagnostic stores screenshots (and in debug mode the page source)
// of a browser page under deterministic names.
package diagnostic

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/theeshop/listingbot/internal/browser"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/utils"
)

// Path returns where the screenshot for account and tag is stored.
// Different accounts never share a path.
func Path(dir, account, tag string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", utils.FileName(account), utils.Slugify(tag)))
}

// Screenshotter captures the state of one account's page.
type Screenshotter struct {
	Dir     string
	Account string
	Page    browser.Page
	// DumpHTML writes the page source next to every screenshot. It is
	// always done in debug mode.
	DumpHTML bool
}

func New(dir, account string, page browser.Page) *Screenshotter {
	return &Screenshotter{Dir: dir, Account: account, Page: page}
}

// Capture writes a screenshot for tag and returns its path. A later capture
// with the same tag overwrites the earlier one.
func (s *Screenshotter) Capture(ctx context.Context, tag string) (string, error) {
	logger := log.LoggerFromContext(ctx)
	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
			return "", fmt.Errorf("failed to create diagnostics directory: %v", err)
		}
	}
	filename := Path(s.Dir, s.Account, tag)
	buf, err := s.Page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}
	logger.Debug(fmt.Sprintf("writing screenshot to file %s", filename))
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		return "", err
	}
	if s.DumpHTML || log.Debug {
		s.writeHTML(ctx, strings.TrimSuffix(filename, ".png")+".html")
	}
	return filename, nil
}

func (s *Screenshotter) writeHTML(ctx context.Context, filename string) {
	logger := log.LoggerFromContext(ctx)
	body, err := s.Page.Content(ctx)
	if err != nil {
		logger.Warn("failed to read page source", slog.String("err", err.Error()))
		return
	}
	logger.Debug(fmt.Sprintf("writing html to file %s", filename))
	if err := os.WriteFile(filename, []byte(body), 0644); err != nil {
		logger.Warn(fmt.Sprintf("failed to write html to file %s", filename), slog.String("err", err.Error()))
	}
}
