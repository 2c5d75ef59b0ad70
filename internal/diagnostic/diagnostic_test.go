package diagnostic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theeshop/listingbot/internal/browser"
)

func TestPathIsDeterministic(t *testing.T) {
	assert.Equal(t, filepath.Join("diag", "puraylen_TitleFill.png"), Path("diag", "puraylen", "TitleFill"))
	assert.Equal(t, filepath.Join("diag", "my-shop_after.png"), Path("diag", "my-shop", "after"))
	assert.Equal(t, filepath.Join("diag", "my-shop~21e02318_after.png"), Path("diag", "my shop", "after"))
	assert.NotEqual(t, Path("diag", "my shop", "after"), Path("diag", "my-shop", "after"))
	assert.Equal(t, Path("d", "a", "b"), Path("d", "a", "b"))
}

func TestCaptureWritesScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	page := browser.NewMockPage()
	s := New(dir, "shop", page)

	path, err := s.Capture(context.Background(), "DescriptionFill")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shop_DescriptionFill.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\n", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "shop_DescriptionFill.html"))
	assert.Equal(t, 1, page.Screenshots())
}

func TestCaptureDumpsHTML(t *testing.T) {
	dir := t.TempDir()
	page := browser.NewMockPage()
	page.SetContent("<html><body>form</body></html>")
	s := New(dir, "shop", page)
	s.DumpHTML = true

	_, err := s.Capture(context.Background(), "x")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "shop_x.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "form")
}

func TestCaptureScreenshotError(t *testing.T) {
	page := browser.NewMockPage()
	page.ScreenshotErr = errors.New("target closed")
	s := New(t.TempDir(), "shop", page)

	_, err := s.Capture(context.Background(), "x")
	assert.ErrorContains(t, err, "target closed")
}
