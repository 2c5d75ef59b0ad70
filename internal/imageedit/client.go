// Package imageedit is a client for the background removal and scene
// generation api used to prepare product photos.
package imageedit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/antchfx/jsonquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.claid.ai"

// ErrNoOutput is returned when the service answered without any image url.
var ErrNoOutput = errors.New("no output image in response")

// Client talks to the image editing service.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient returns a client sending at most perSecond requests per second.
func NewClient(baseURL, apiKey string, perSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if perSecond <= 0 {
		perSecond = 2
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 5 * time.Second
	hc.HTTPClient.Timeout = 60 * time.Second
	hc.Logger = nil
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  slog.With(slog.String("client", "imageedit")),
	}
}

// RemoveBackground cuts the product out of the image at inputURL and
// returns the temporary url of a transparent png.
func (c *Client) RemoveBackground(ctx context.Context, inputURL string) (string, error) {
	payload := map[string]any{
		"input": inputURL,
		"operations": map[string]any{
			"restorations": map[string]any{"decompress": "strong", "polish": false},
			"background": map[string]any{
				"remove": map[string]any{"category": "products", "clipping": true},
				"color":  "transparent",
			},
		},
		"output": map[string]any{"format": map[string]any{"type": "png"}},
	}
	doc, err := c.post(ctx, "/v1/image/edit", payload)
	if err != nil {
		return "", err
	}
	urls := tmpURLs(doc)
	if len(urls) == 0 {
		return "", ErrNoOutput
	}
	return urls[0], nil
}

// SceneOptions controls the generated background.
type SceneOptions struct {
	Guidelines     string
	NegativePrompt string
	AspectRatio    string
	Scale          float64
	Y              float64
	Images         int
}

// DefaultScene places the object slightly below center on a bright studio
// tabletop in a 9:7 frame.
var DefaultScene = SceneOptions{
	Guidelines:     "minimal studio, soft daylight, light wood tabletop, subtle realistic shadows, photorealistic product photo",
	NegativePrompt: "text, logo, watermark, hands, reflections, low quality, extra objects",
	AspectRatio:    "9:7",
	Scale:          0.82,
	Y:              0.52,
	Images:         1,
}

// CreateScene renders the object at objectURL onto a generated background
// and returns the temporary urls of the results.
func (c *Client) CreateScene(ctx context.Context, objectURL string, opts SceneOptions) ([]string, error) {
	if opts.Images <= 0 {
		opts.Images = 1
	}
	prompt := map[string]any{"generate": true}
	if opts.Guidelines != "" {
		prompt["guidelines"] = opts.Guidelines
	}
	payload := map[string]any{
		"object": map[string]any{
			"image_url":      objectURL,
			"placement_type": "absolute",
			"scale":          opts.Scale,
			"position":       map[string]float64{"x": 0.5, "y": opts.Y},
		},
		"scene": map[string]any{
			"model":           "v2",
			"prompt":          prompt,
			"negative_prompt": opts.NegativePrompt,
			"aspect_ratio":    opts.AspectRatio,
			"preference":      "optimal",
		},
		"output": map[string]any{
			"number_of_images": opts.Images,
			"format":           "png",
		},
	}
	doc, err := c.post(ctx, "/v1/scene/create", payload)
	if err != nil {
		return nil, err
	}
	urls := tmpURLs(doc)
	if len(urls) == 0 {
		return nil, ErrNoOutput
	}
	return urls, nil
}

// Download stores the image at url in dst.
func (c *Client) Download(ctx context.Context, url, dst string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *Client) post(ctx context.Context, path string, payload any) (*jsonquery.Node, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	c.logger.Debug(fmt.Sprintf("posting to %s", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("image service error %d: %s", resp.StatusCode, errorMessage(respBody))
	}
	doc, err := jsonquery.Parse(bytes.NewReader(respBody))
	if err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return doc, nil
}

// tmpURLs collects the result urls. The output is either a single object
// or a list of objects depending on the operation.
func tmpURLs(doc *jsonquery.Node) []string {
	var urls []string
	for _, n := range jsonquery.Find(doc, "//data/output//tmp_url") {
		if u := n.InnerText(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func errorMessage(body []byte) string {
	doc, err := jsonquery.Parse(bytes.NewReader(body))
	if err == nil {
		if n := jsonquery.FindOne(doc, "//error_message"); n != nil {
			return n.InnerText()
		}
	}
	return strings.TrimSpace(string(body))
}
