package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// FetchURLTool retrieves a web page and returns its text content.
type FetchURLTool struct {
	httpClient *http.Client
}

// NewFetchURLTool creates a new FetchURLTool.
func NewFetchURLTool() *FetchURLTool {
	return &FetchURLTool{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (t *FetchURLTool) Name() string { return "fetch_url" }

func (t *FetchURLTool) Description() string {
	return "Fetch a web page by URL and return its text content, truncated to max_length characters."
}

func (t *FetchURLTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The http(s) URL to fetch",
			},
			"max_length": map[string]any{
				"type":        "integer",
				"description": "Maximum characters to return (default: 2000)",
			},
		},
		"required": []string{"url"},
	}
}

var (
	tagPattern    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]*>`)
	spacesPattern = regexp.MustCompile(`[ \t]+`)
	linesPattern  = regexp.MustCompile(`\n{3,}`)
)

func (t *FetchURLTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL := GetString(params, "url", "")
	maxLength := GetInt(params, "max_length", 2000)

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Sprintf("Error: invalid URL: %s", rawURL), nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	req.Header.Set("User-Agent", "wxclaw/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: HTTP %d from %s", resp.StatusCode, rawURL), nil
	}

	// Cap the read well above maxLength so truncation happens on cleaned text.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	text := tagPattern.ReplaceAllString(string(body), " ")
	text = spacesPattern.ReplaceAllString(text, " ")
	text = linesPattern.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if len(text) > maxLength {
		text = text[:maxLength] + "..."
	}
	if text == "" {
		return fmt.Sprintf("No text content at %s", rawURL), nil
	}
	return text, nil
}
