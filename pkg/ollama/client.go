package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/profilekit/avatar-cropper/pkg/types"
)

// defaultTimeout bounds a single placement query when the caller supplies no
// deadline. Vision models on CPU can take minutes.
const defaultTimeout = 300 * time.Second

// Client asks an Ollama vision model to locate the subject an avatar crop
// should start on.
type Client struct {
	client *api.Client
}

// NewClient creates a client for the Ollama server at ollamaURL. Any path
// component is discarded; only scheme and host are used.
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// SuggestSubject sends the image to the model and parses its subject
// placement answer. Unusable model output degrades to a centered fallback
// placement rather than an error; only transport failures surface.
func (c *Client) SuggestSubject(ctx context.Context, model, prompt, imgB64 string) (*types.Placement, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
		// Placement wants deterministic coordinates, not creative prose.
		Options: map[string]any{
			"temperature": 0.2,
			"top_p":       0.9,
		},
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	if responseContent == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	return parsePlacement(responseContent), nil
}

// parsePlacement parses the JSON response from the vision model, degrading
// to a centered fallback whenever the payload is not usable JSON.
func parsePlacement(raw string) *types.Placement {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return types.CenteredFallback("none", "model returned non-JSON response")
	}

	var placement types.Placement
	if err := json.Unmarshal([]byte(raw), &placement); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return types.CenteredFallback("none", "no valid JSON found in response")
		}
		if err2 := json.Unmarshal([]byte(raw[start:end+1]), &placement); err2 != nil {
			return types.CenteredFallback("none", "failed to parse model response")
		}
	}

	return &placement
}

// sanitizeModelJSON removes code fences, comments and trailing commas that
// vision models habitually wrap around their JSON.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}
