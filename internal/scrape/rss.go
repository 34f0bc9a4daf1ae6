package scrape

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s{3,}`)
)

// FeedURL returns the RSS representation of a profile page. Mastodon-style
// sites expose it by appending ".rss" to the profile URL.
func FeedURL(profileURL string) string {
	return strings.TrimRight(profileURL, "/") + ".rss"
}

// RSSExtractor extracts post records from the RSS representation of a
// profile. It is an alternative document format for the same single profile,
// useful when the HTML page is rendered client-side.
type RSSExtractor struct {
	profileURL string
	now        func() time.Time
}

// NewRSS creates an RSS extractor for the given profile URL.
func NewRSS(profileURL string) (*RSSExtractor, error) {
	if _, err := originOf(profileURL); err != nil {
		return nil, err
	}
	return &RSSExtractor{profileURL: profileURL, now: time.Now}, nil
}

// Extract parses the feed body and returns one record per item, in feed
// order. An unparseable feed is a single document-level skip.
func (e *RSSExtractor) Extract(body string) ([]Record, []Skip) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, []Skip{{Index: -1, Reason: fmt.Sprintf("parse feed: %v", err)}}
	}

	var (
		records []Record
		skips   []Skip
	)

	for i, item := range feed.Items {
		rec, skip := e.extractItem(i, item)
		if skip != nil {
			skips = append(skips, *skip)
			continue
		}
		records = append(records, rec)
	}

	return records, skips
}

func (e *RSSExtractor) extractItem(index int, item *gofeed.Item) (Record, *Skip) {
	if item.GUID == "" && item.Link == "" && item.Title == "" &&
		item.Description == "" && item.Content == "" {
		return Record{}, &Skip{Index: index, Reason: "empty feed item"}
	}

	id := item.GUID
	if id == "" {
		id = item.Link
	}
	if id == "" {
		id = fmt.Sprintf("unknown-%d", e.now().Unix())
	}

	content := stripHTML(item.Content)
	if content == "" {
		content = stripHTML(item.Description)
	}
	if content == "" {
		content = strings.TrimSpace(item.Title)
	}
	if content == "" {
		content = ContentPlaceholder
	}

	ts := ""
	switch {
	case item.PublishedParsed != nil:
		ts = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		ts = item.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		ts = e.now().Format(time.RFC3339)
	}

	link := item.Link
	if link == "" {
		link = e.profileURL
	}

	return Record{ID: id, Content: content, Timestamp: ts, Link: link}, nil
}

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
