// Package fetcher pulls job postings from the web and strips them down
// to plain text suitable for pasting into a workspace.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBodyBytes = 5 * 1024 * 1024
const maxTextBytes = 20 * 1024

// Fetcher retrieves a posting URL and extracts its readable text.
type Fetcher struct {
	client *http.Client
}

func New() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

// FetchText downloads the page and returns its text content.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "jdc/1.0 (jd-compare)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text := extractText(string(body))
	if text == "" {
		return "", fmt.Errorf("no text content found")
	}
	return text, nil
}

// IsURL checks if a string looks like a URL rather than pasted JD text
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// extractText parses HTML into plain text, one line per block element.
// Postings lean on their headings and bullet lists for meaning, so
// block boundaries survive extraction; whitespace inside a block is
// collapsed.
func extractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTag(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTag(n.Data) {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	result := strings.Join(lines, "\n")

	// Postings past this size are boilerplate, not requirements.
	if len(result) > maxTextBytes {
		result = result[:maxTextBytes] + "..."
	}
	return result
}

// skipTag marks elements whose text is never posting content.
func skipTag(name string) bool {
	switch name {
	case "script", "style", "nav", "header", "footer", "aside", "noscript", "iframe":
		return true
	}
	return false
}

// blockTag marks elements that end a line of extracted text.
func blockTag(name string) bool {
	switch name {
	case "p", "div", "section", "article", "ul", "ol", "li", "br",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
