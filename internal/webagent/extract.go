package webagent

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// truncationMarker is appended when a source's text is cut at the limit.
const truncationMarker = "…"

// extractText pulls readable text from an HTML page. Readability handles
// article-shaped pages; pages it cannot parse fall back to joining paragraph
// text. Returns "" when the page yields no usable text.
func extractText(pageURL string, body []byte) (title, text string) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil {
		text = strings.TrimSpace(article.TextContent)
		title = strings.TrimSpace(article.Title)
	}
	if text != "" {
		return title, text
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return title, strings.Join(parts, "\n")
}

// truncateRunes caps s at limit runes, appending the truncation marker when
// text was cut.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}
