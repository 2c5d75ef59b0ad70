// Package describe generates listing copy from product photos through a
// text generation service.
package describe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/antchfx/jsonquery"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	MaxImages = 4

	fallbackTitle       = "Untitled Product"
	fallbackDescription = "A thoughtfully designed piece with a clean, minimalist aesthetic. " +
		"Crafted with durable materials and finished for everyday use. " +
		"Shipped with care. Questions? Send a message."
)

const systemPrompt = "You are an elite marketplace SEO copywriter and visual merchandiser. " +
	"You will receive 1-4 images of the SAME product (different angles). " +
	`Return STRICT JSON only with keys: {"title":"...","description":"..."}.`

const guidelines = "Title (US English): 110-140 characters, highly readable, optimized for marketplace SEO. " +
	"Include product type, key material or finish, color, style and primary use. " +
	"Front-load important keywords but keep it natural. No brand names.\n" +
	"Description: 3 short paragraphs. (1) a lifestyle hook and the main use case, " +
	"(2) specific details such as materials, dimensions and craftsmanship, " +
	"(3) care, packaging, shipping and a closing call to action.\n" +
	"Never fabricate facts that contradict the images. No pricing or guarantees."

// Copy is the generated listing text.
type Copy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Raw         string `json:"-"`
}

// Describer turns product photos into listing copy.
type Describer interface {
	Describe(ctx context.Context, images []string, hints string) (Copy, error)
}

// Client posts the images and prompt to a generation endpoint and reads
// the first "text" value of the answer.
type Client struct {
	URL    string
	APIKey string
	Model  string

	http *retryablehttp.Client
}

func NewClient(url, apiKey, model string) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 2
	hc.HTTPClient.Timeout = 120 * time.Second
	hc.Logger = nil
	return &Client{URL: url, APIKey: apiKey, Model: model, http: hc}
}

type imagePart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type request struct {
	Model      string         `json:"model,omitempty"`
	System     string         `json:"system"`
	Prompt     string         `json:"prompt"`
	Images     []imagePart    `json:"images"`
	Generation map[string]any `json:"generation"`
}

func (c *Client) Describe(ctx context.Context, images []string, hints string) (Copy, error) {
	if len(images) == 0 {
		return Copy{}, errors.New("at least one image required")
	}
	if len(images) > MaxImages {
		return Copy{}, fmt.Errorf("at most %d images allowed, got %d", MaxImages, len(images))
	}
	req := request{
		Model:  c.Model,
		System: systemPrompt,
		Prompt: buildPrompt(hints),
		Generation: map[string]any{
			"temperature":       0.7,
			"top_p":             0.9,
			"top_k":             40,
			"max_output_tokens": 900,
		},
	}
	for _, p := range images {
		data, err := os.ReadFile(p)
		if err != nil {
			return Copy{}, fmt.Errorf("image not found: %w", err)
		}
		mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
		if mt == "" {
			mt = "image/jpeg"
		}
		req.Images = append(req.Images, imagePart{MimeType: mt, Data: base64.StdEncoding.EncodeToString(data)})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Copy{}, err
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Copy{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return Copy{}, fmt.Errorf("describe request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Copy{}, err
	}
	if resp.StatusCode >= 400 {
		return Copy{}, fmt.Errorf("describe service error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	doc, err := jsonquery.Parse(bytes.NewReader(respBody))
	if err != nil {
		return Copy{}, fmt.Errorf("invalid describe response: %w", err)
	}
	var raw string
	if n := jsonquery.FindOne(doc, "//text"); n != nil {
		raw = strings.TrimSpace(n.InnerText())
	}
	slog.Debug(fmt.Sprintf("describe raw answer: %s", raw))
	return ParseCopy(raw), nil
}

func buildPrompt(hints string) string {
	var sb strings.Builder
	sb.WriteString(guidelines)
	sb.WriteString("\n")
	if h := strings.TrimSpace(hints); h != "" {
		sb.WriteString("Additional, optional product facts provided by the seller (use them naturally if relevant):\n")
		sb.WriteString(h)
		sb.WriteString("\nPrefer the title and the first paragraph for these details.\n")
	}
	sb.WriteString("Analyze the product images and write the listing copy in English.\n")
	sb.WriteString(`Return JSON as: {"title":"...","description":"..."}`)
	return sb.String()
}

var (
	fenceRe  = regexp.MustCompile("(?m)^```(?:json)?\\s*|\\s*```$")
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseCopy extracts title and description from a model answer that may
// wrap the json in a code fence or surround it with prose. Missing fields
// get generic fallbacks.
func ParseCopy(raw string) Copy {
	c := Copy{Raw: raw}
	cleaned := fenceRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		if m := objectRe.FindString(cleaned); m != "" {
			_ = json.Unmarshal([]byte(m), &c)
		}
	}
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	if c.Title == "" {
		c.Title = fallbackTitle
	}
	if c.Description == "" {
		c.Description = fallbackDescription
	}
	return c
}
