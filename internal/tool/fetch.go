package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/loreweaver/loreweaver/internal/log"
)

// maxReferenceChars caps the extracted text handed back to the model.
const maxReferenceChars = 8000

// URLValidator approves outbound fetch targets. internal/security.HTTP is
// the production implementation.
type URLValidator interface {
	ValidateURL(url string) error
	Client() *http.Client
	MaxResponseSize() int64
}

// FetchReferenceInput defines input for the fetch_reference tool.
type FetchReferenceInput struct {
	URL string `json:"url" jsonschema:"The web page to fetch as reference material."`
}

// NewFetchReference creates the fetch_reference tool. Fetched pages are
// reduced to readable article text; pages that defeat article extraction
// fall back to stripped body text.
func NewFetchReference(validator URLValidator, logger log.Logger) (Tool, error) {
	if validator == nil {
		return nil, fmt.Errorf("fetch_reference: validator is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	f := &fetcher{validator: validator, logger: logger}

	return New(
		"fetch_reference",
		"Fetch a public web page and return its readable text, for use as reference material.",
		f.fetch,
	)
}

type fetcher struct {
	validator URLValidator
	logger    log.Logger
}

func (f *fetcher) fetch(ctx context.Context, input FetchReferenceInput) (string, error) {
	if err := f.validator.ValidateURL(input.URL); err != nil {
		return "", fmt.Errorf("url rejected: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "loreweaver-reference-fetcher/1.0")

	resp, err := f.validator.Client().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", input.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", input.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.validator.MaxResponseSize()))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	text := f.extract(body, resp.Request.URL)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no readable text found at %s", input.URL)
	}
	if len(text) > maxReferenceChars {
		text = text[:maxReferenceChars] + "\n[truncated]"
	}
	return text, nil
}

// extract tries article extraction first, then progressively cruder text
// recovery.
func (f *fetcher) extract(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		if article.Title != "" {
			return article.Title + "\n\n" + article.TextContent
		}
		return article.TextContent
	}
	f.logger.Debug("article extraction failed, falling back to body text", "url", pageURL.String())

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		doc.Find("script, style, noscript, nav, header, footer").Remove()
		if text := collapseWhitespace(doc.Find("body").Text()); text != "" {
			return text
		}
	}

	return collapseWhitespace(rawText(body))
}

// rawText collects text nodes from a best-effort parse of arbitrary markup.
func rawText(body []byte) string {
	node, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
