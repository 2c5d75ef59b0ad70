// Package builder turns a handful of raw product photos into a product
// folder with generated photos, listing copy and a product file that the
// create command accepts.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theeshop/listingbot/internal/describe"
	"github.com/theeshop/listingbot/internal/imageedit"
	"github.com/theeshop/listingbot/internal/objectstore"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/utils"
)

const (
	ProductFile = "product.yml"

	defaultScenes = 2
	maxScenes     = 5
)

// Variant prompts for the square photos following the 9:7 master.
var squarePrompts = []string{
	"clean minimal studio, soft daylight, light wooden surface, shallow depth of field, photorealistic product photo",
	"lifestyle scene, cozy interior, natural daylight near window, light wood table, soft shadows, photorealistic",
	"bright editorial look, seamless paper backdrop, gentle gradient light, soft shadow, photorealistic",
}

// ImageEditor is the part of the image service the builder needs.
type ImageEditor interface {
	RemoveBackground(ctx context.Context, inputURL string) (string, error)
	CreateScene(ctx context.Context, objectURL string, opts imageedit.SceneOptions) ([]string, error)
	Download(ctx context.Context, url, dst string) error
}

// Request describes one product to build.
type Request struct {
	Images        []string
	CategoryQuery string
	Hints         string
	// Scenes is the number of generated photos per source image, 1 to 5.
	Scenes int
}

// Result points at everything the build produced.
type Result struct {
	Dir       string
	Product   *product.Input
	File      string
	Sources   []string
	Generated []string
}

type Builder struct {
	ProductsDir string
	Uploader    objectstore.Uploader
	Editor      ImageEditor
	Describer   describe.Describer
	Links       *LinkStore
	Now         func() time.Time
}

// Build describes the images, generates the photos and writes the product
// file. A failing image generation for one source is logged and skipped
// so the remaining photos are still usable.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if len(req.Images) == 0 {
		return nil, errors.New("at least one image required")
	}
	if len(req.Images) > describe.MaxImages {
		return nil, fmt.Errorf("at most %d images allowed, got %d", describe.MaxImages, len(req.Images))
	}
	if strings.TrimSpace(req.CategoryQuery) == "" {
		return nil, errors.New("category query must not be empty")
	}
	for _, p := range req.Images {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("image %s: %w", p, err)
		}
	}

	cp, err := b.Describer.Describe(ctx, req.Images, req.Hints)
	if err != nil {
		return nil, fmt.Errorf("failed to describe product: %w", err)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	dir := filepath.Join(b.ProductsDir, fmt.Sprintf("%s__%s", folderName(cp.Title), now().UTC().Format("20060102-150405")))
	srcDir := filepath.Join(dir, "images", "source")
	genDir := filepath.Join(dir, "images", "generated")
	for _, d := range []string{srcDir, genDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, err
		}
	}

	res := &Result{Dir: dir}
	for _, p := range req.Images {
		dst := filepath.Join(srcDir, filepath.Base(p))
		if err := copyFile(p, dst); err != nil {
			return nil, err
		}
		res.Sources = append(res.Sources, dst)
	}

	scenes := clamp(req.Scenes)
	for _, src := range res.Sources {
		files, err := b.generate(ctx, src, genDir, scenes)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn(fmt.Sprintf("skipping photo generation for %s: %v", src, err))
		}
		res.Generated = append(res.Generated, files...)
	}

	images := res.Generated
	if len(images) == 0 {
		images = res.Sources
	}
	res.Product = &product.Input{
		CategoryQuery: req.CategoryQuery,
		Title:         cp.Title,
		Description:   cp.Description,
		WhoMade:       product.WhoMadeIDid,
		WhenMade:      "made_to_order",
		Type:          product.TypePhysical,
		Images:        images,
	}
	res.File = filepath.Join(dir, ProductFile)
	if err := product.WriteFile(res.File, res.Product); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("built product %q with %d photos in %s", cp.Title, len(images), dir))
	return res, nil
}

func (b *Builder) generate(ctx context.Context, src, genDir string, scenes int) ([]string, error) {
	url, err := b.publicURL(ctx, src)
	if err != nil {
		return nil, err
	}
	cutout, err := b.Editor.RemoveBackground(ctx, url)
	if err != nil {
		return nil, err
	}
	base := folderName(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))

	var files []string
	for i := range scenes {
		opts := imageedit.DefaultScene
		name := fmt.Sprintf("%s_master_9x7.png", base)
		if i > 0 {
			opts.AspectRatio = "1:1"
			opts.Guidelines = squarePrompts[(i-1)%len(squarePrompts)]
			opts.Scale = 0.85
			opts.Y = 0.5
			name = fmt.Sprintf("%s_1x1_%d.png", base, i)
		}
		urls, err := b.Editor.CreateScene(ctx, cutout, opts)
		if err != nil {
			return files, err
		}
		dst := filepath.Join(genDir, name)
		if err := b.Editor.Download(ctx, urls[0], dst); err != nil {
			return files, err
		}
		files = append(files, dst)
	}
	return files, nil
}

// publicURL uploads src unless a file with the same content was uploaded
// before.
func (b *Builder) publicURL(ctx context.Context, src string) (string, error) {
	var hash string
	if b.Links != nil {
		h, err := HashFile(src)
		if err != nil {
			return "", err
		}
		hash = h
		if url, ok := b.Links.Get(hash); ok {
			slog.Debug(fmt.Sprintf("reusing upload of %s: %s", src, url))
			return url, nil
		}
	}
	url, err := b.Uploader.Upload(ctx, src)
	if err != nil {
		return "", err
	}
	if b.Links != nil {
		if err := b.Links.Set(hash, src, url); err != nil {
			slog.Warn(fmt.Sprintf("failed to update link index: %v", err))
		}
	}
	return url, nil
}

func folderName(s string) string {
	name := []rune(utils.Slugify(s))
	if len(name) == 0 {
		return "product"
	}
	return string(name[:min(len(name), 120)])
}

func clamp(n int) int {
	if n <= 0 {
		return defaultScenes
	}
	return min(n, maxScenes)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
