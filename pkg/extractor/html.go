// Package extractor converts fetched HTML into markdown text. It backs the
// local fallback used when the remote scrape backend cannot serve a URL.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor parses HTML and renders a markdown approximation of its
// readable content.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract returns markdown text plus document metadata.
func (h *HTMLExtractor) Extract(ctx context.Context, content []byte) (string, map[string]string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var b strings.Builder
	var title string
	renderMarkdown(doc, &b, &title)

	text := cleanupText(b.String())

	metadata := map[string]string{
		"type":       "html",
		"characters": fmt.Sprintf("%d", len(text)),
		"title":      title,
	}

	return text, metadata, nil
}

func renderMarkdown(n *html.Node, b *strings.Builder, title *string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "nav", "header", "footer", "aside", "iframe":
			return
		case "title":
			if *title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				*title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			fmt.Fprintf(b, "\n\n%s %s\n\n", strings.Repeat("#", level), collectText(n))
			return
		case "li":
			fmt.Fprintf(b, "\n- %s", collectText(n))
			return
		case "pre":
			fmt.Fprintf(b, "\n\n```\n%s\n```\n\n", strings.TrimRight(collectText(n), "\n"))
			return
		case "a":
			text := collectText(n)
			href := attr(n, "href")
			if text != "" && strings.HasPrefix(href, "http") {
				fmt.Fprintf(b, " [%s](%s) ", text, href)
				return
			}
		case "br":
			b.WriteString("\n")
			return
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			if n.Parent != nil && isBlockElement(n.Parent.Data) {
				fmt.Fprintf(b, "\n%s\n", text)
			} else {
				fmt.Fprintf(b, " %s ", text)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdown(c, b, title)
	}
}

// collectText flattens all text nodes below n into one space-joined string.
func collectText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func isBlockElement(tag string) bool {
	blockElements := map[string]bool{
		"p": true, "div": true, "blockquote": true,
		"article": true, "section": true, "main": true,
		"td": true, "th": true, "dt": true, "dd": true,
	}
	return blockElements[tag]
}

func cleanupText(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string

	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				cleaned = append(cleaned, "")
			}
			blank = true
			continue
		}
		blank = false
		if !strings.HasPrefix(trimmed, "```") && !strings.HasPrefix(trimmed, "- ") {
			trimmed = strings.Join(strings.Fields(trimmed), " ")
		}
		cleaned = append(cleaned, trimmed)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
