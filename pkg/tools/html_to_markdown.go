package tools

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/schema"
	"github.com/richard-senior/mcp/pkg/transport"
)

const maxMarkdownLength = 10000

// HTMLToMarkdownTool fetches a URL and converts its HTML body to
// markdown, so an LLM client can consume a page's content without
// having to parse raw tags itself.
func HTMLToMarkdownTool() mcptypes.Tool {
	u := schema.String()
	u.Format = "url"
	u.Description = "The URL of the HTML page to convert to markdown, e.g. https://www.richardsenior.net/"

	return mcptypes.Tool{
		Name:        "html_to_markdown",
		Description: "Fetches a URL and converts its HTML content to Markdown for easier consumption by LLM clients",
		InputSchema: schema.Object(map[string]*schema.Schema{"url": u}, "url"),
		Hints:       mcptypes.HintReadOnly | mcptypes.HintOpenWorld,
		Handler:     handleHTMLToMarkdown,
	}
}

func handleHTMLToMarkdown(args map[string]any, _ *mcptypes.RequestContext) (any, error) {
	pageURL, _ := args["url"].(string)
	if pageURL == "" {
		return nil, fmt.Errorf("html_to_markdown: url is required")
	}

	logger.Info("html_to_markdown: fetching", pageURL)
	body, err := transport.GetHtml(pageURL)
	if err != nil {
		return nil, fmt.Errorf("html_to_markdown: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("html_to_markdown: failed to parse document for title extraction", err)
	}

	domain := extractDomain(pageURL)
	title := "No title found"
	if doc != nil {
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		}
	}

	markdown, err := htmltomarkdown.ConvertString(string(body), converter.WithDomain(domain))
	if err != nil {
		return nil, fmt.Errorf("html_to_markdown: converting to markdown: %w", err)
	}
	if len(markdown) > maxMarkdownLength {
		markdown = markdown[:maxMarkdownLength] + "\n\n... (content truncated due to size)"
	}

	return map[string]any{
		"markdown": markdown,
		"url":      pageURL,
		"title":    title,
		"domain":   domain,
	}, nil
}

func extractDomain(rawURL string) string {
	withScheme := rawURL
	if !strings.HasPrefix(withScheme, "http://") && !strings.HasPrefix(withScheme, "https://") {
		withScheme = "https://" + withScheme
	}
	parsed, err := url.Parse(withScheme)
	if err != nil {
		return "unknown"
	}
	scheme := "https://"
	if strings.HasPrefix(withScheme, "http://") {
		scheme = "http://"
	}
	return scheme + parsed.Hostname()
}
