package web

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Boilerplate elements removed before looking for the article body.
const boilerplate = "script, style, nav, header, footer, aside"

// Containers commonly wrapping article bodies, in order of preference.
var contentContainers = []string{
	"article",
	".article-content",
	".post-content",
	".entry-content",
	".article-body",
	".content",
	"#main-content",
	".main-content",
}

var paywallIndicators = []string{
	"paywall",
	"subscribe-wall",
	"metered-paywall",
	"limited-access",
}

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(`meta[property="` + property + `"], meta[name="` + property + `"]`).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractTitle(doc *goquery.Document, u *url.URL) string {
	for _, prop := range []string{"og:title", "article:title"} {
		if t := metaContent(doc, prop); t != "" {
			return t
		}
	}
	if h1 := squash(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if t := squash(doc.Find("title").First().Text()); t != "" {
		t, _, _ = strings.Cut(t, "|")
		t, _, _ = strings.Cut(t, "-")
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	host = strings.Replace(host, ".com", "", 1)
	return cases.Title(language.English).String(host)
}

func extractAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`meta[property="article:author"], meta[name="author"]`).Each(func(_ int, s *goquery.Selection) {
		if c := strings.TrimSpace(s.AttrOr("content", "")); c != "" {
			authors = append(authors, c)
		}
	})

	if len(authors) == 0 {
		byline := squash(doc.Find(".byline, .author-name, .author, .author-info").First().Text())
		byline, _, _ = strings.Cut(byline, "•")
		byline, _, _ = strings.Cut(byline, "Posted")
		byline = strings.TrimSpace(byline)
		if byline != "" && utf8.RuneCountInString(byline) < 100 {
			authors = append(authors, byline)
		}
	}

	seen := make(map[string]bool)
	var unique []string
	for _, a := range authors {
		if !seen[a] {
			seen[a] = true
			unique = append(unique, a)
		}
	}
	if len(unique) == 0 {
		return []string{"Unknown"}
	}
	return unique
}

func extractPublished(doc *goquery.Document) *time.Time {
	candidates := []string{
		metaContent(doc, "article:published_time"),
		metaContent(doc, "datePublished"),
		strings.TrimSpace(doc.Find("time[datetime]").First().AttrOr("datetime", "")),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return &t
			}
		}
	}
	return nil
}

func extractPublisher(doc *goquery.Document) string {
	if s := metaContent(doc, "og:site_name"); s != "" {
		return s
	}
	return metaContent(doc, "article:publisher")
}

// extractContent strips boilerplate from doc and returns the HTML of the
// most likely article container, or "" if none has enough text.
func extractContent(doc *goquery.Document) string {
	doc.Find(boilerplate).Remove()

	for _, sel := range contentContainers {
		if c := doc.Find(sel).First(); c.Length() > 0 {
			if html, err := goquery.OuterHtml(c); err == nil {
				return html
			}
		}
	}

	var largest *goquery.Selection
	largestSize := 0
	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		size := utf8.RuneCountInString(squash(s.Text()))
		if size > largestSize && size > 200 {
			largest = s
			largestSize = size
		}
	})
	if largest == nil {
		return ""
	}
	html, err := goquery.OuterHtml(largest)
	if err != nil {
		return ""
	}
	return html
}

func toMarkdown(contentHTML string) (string, error) {
	text, err := html2text.FromString(contentHTML, html2text.Options{PrettyTables: false})
	if err != nil {
		return "", err
	}
	return cleanMarkdown(text), nil
}

// cleanMarkdown collapses runs of blank lines and trailing whitespace.
func cleanMarkdown(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	md = extraBlankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(md)
}

func hasPaywall(pageHTML, content string) bool {
	lower := strings.ToLower(pageHTML)
	for _, indicator := range paywallIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return strings.Count(content, "subscribe") > 5 && utf8.RuneCountInString(content) < 1000
}
