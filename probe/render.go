package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/vidcheck/result"
)

// maxRenderHops bounds client-side refresh redirects followed by Render.
const maxRenderHops = 3

// Render loads rawURL in the session's persistent context, follows
// client-side refresh redirects, and returns the landing URL and the
// visible document text.
func (s *Session) Render(ctx context.Context, rawURL string, timeout time.Duration) (*Page, error) {
	target := rawURL
	for hop := 0; ; hop++ {
		resp, err := s.Fetch(ctx, Request{URL: target, Timeout: timeout})
		if err != nil {
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
		if err != nil {
			return nil, &FetchError{URL: target, Category: result.CategoryUnknown, Attempts: 1,
				Err: fmt.Errorf("parse document: %w", err)}
		}

		if hop < maxRenderHops {
			if next, ok := refreshTarget(doc, resp.FinalURL); ok && next != resp.FinalURL {
				target = next
				continue
			}
		}

		return &Page{FinalURL: resp.FinalURL, Text: VisibleText(doc)}, nil
	}
}

// VisibleText returns the title and body text of doc with scripts removed
// and whitespace collapsed.
func VisibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := doc.Find("body").Text()
	return strings.Join(strings.Fields(title+" "+body), " ")
}

func refreshTarget(doc *goquery.Document, base string) (string, bool) {
	var target string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		equiv, _ := sel.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
			return true
		}
		content, _ := sel.Attr("content")
		if u, ok := ParseRefresh(content); ok {
			target = u
			return false
		}
		return true
	})
	if target == "" {
		return "", false
	}
	return resolveAgainst(base, target)
}
