package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/papercomputeco/formu/pkg/sse"
)

// DefaultStyle is the prompt style used when none is given.
const DefaultStyle = "realistic"

// StreamPrompt uploads img for analysis and feeds the event stream into h.
// It returns once the stream ends, the sentinel arrives, or ctx is done.
func (c *Client) StreamPrompt(ctx context.Context, img Image, style string, h sse.Handler) error {
	form := newMultipartForm()
	form.file("file", img)
	if err := form.close(); err != nil {
		return err
	}

	path := "/prompt-generation?style=" + url.QueryEscape(styleOrDefault(style))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, form.body())
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", form.contentType())

	return c.stream(ctx, req, h)
}

// StreamPromptFromURL is StreamPrompt for an image the backend fetches
// itself.
func (c *Client) StreamPromptFromURL(ctx context.Context, imageURL, style string, h sse.Handler) error {
	if _, err := url.ParseRequestURI(imageURL); err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"style":     styleOrDefault(style),
		"image_url": imageURL,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt-generation-url", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.stream(ctx, req, h)
}

func (c *Client) stream(ctx context.Context, req *http.Request, h sse.Handler) error {
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return sse.Decode(ctx, resp.Body, h)
}

func styleOrDefault(style string) string {
	if style == "" {
		return DefaultStyle
	}
	return style
}
