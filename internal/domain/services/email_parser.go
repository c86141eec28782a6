package services

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
)

var textLinkPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"')\]]+`)

// mimeParser leaves HTML-only bodies unconverted; ParseRawEmail converts them
// without inline link annotations
var mimeParser = enmime.NewParser(enmime.DisableTextConversion(true))

// ParsedEmail is the subset of an RFC 822 message the email extractor consumes
type ParsedEmail struct {
	Subject string
	Body    string
	Links   []string
}

// ParseRawEmail reads a MIME message and pulls out subject, body text and links.
// HTML-only messages are converted to text; links come from anchors first, then
// from bare URLs in the text, without duplicates.
func ParseRawEmail(r io.Reader) (*ParsedEmail, error) {
	env, err := mimeParser.ReadEnvelope(r)
	if err != nil {
		return nil, malformed("message", "unreadable MIME message: %v", err)
	}

	parsed := &ParsedEmail{
		Subject: env.GetHeader("Subject"),
		Body:    env.Text,
	}

	if strings.TrimSpace(parsed.Body) == "" && env.HTML != "" {
		text, err := html2text.FromString(env.HTML, html2text.Options{OmitLinks: true})
		if err != nil {
			return nil, fmt.Errorf("failed to convert html body: %w", err)
		}
		parsed.Body = text
	}

	seen := make(map[string]struct{})
	add := func(link string) {
		link = strings.TrimSpace(link)
		if link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		parsed.Links = append(parsed.Links, link)
	}

	if env.HTML != "" {
		for _, href := range htmlLinks(env.HTML) {
			add(href)
		}
	}
	for _, m := range textLinkPattern.FindAllString(env.Text, -1) {
		add(strings.TrimRight(m, ".,;:!?"))
	}

	if parsed.Links == nil {
		parsed.Links = []string{}
	}
	return parsed, nil
}

// htmlLinks returns the http(s) and mailto targets of every anchor
func htmlLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(strings.TrimSpace(href))
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "mailto:") {
			links = append(links, strings.TrimSpace(href))
		}
	})
	return links
}
