// Package scrape fetches a social profile page and extracts post records
// from it. Fetch failures and malformed containers are soft failures: they
// shrink the result and are logged, but never abort a run.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const (
	fetchTimeout = 30 * time.Second

	// Sites often serve bot-looking clients an empty shell, so the
	// fetcher identifies itself as a desktop browser.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// ContentPlaceholder substitutes for a post body that could not be parsed.
	ContentPlaceholder = "(content unavailable)"
)

// Selectors holds the ordered fallback selector chains used to locate post
// containers and their fields. Markup varies between site templates, so each
// chain is tried in order until one yields a value.
type Selectors struct {
	Containers []string
	Content    []string
	Timestamp  []string
	Link       []string
}

// DefaultSelectors returns the selector chains for Mastodon-style profile pages.
func DefaultSelectors() Selectors {
	return Selectors{
		Containers: []string{"div.status-card", "article.status"},
		Content:    []string{".status__content", ".post-content"},
		Timestamp:  []string{"time", ".status__relative-time"},
		Link:       []string{"a.status__relative-time", "a.post-link"},
	}
}

// HTMLExtractor extracts post records from a profile page document.
type HTMLExtractor struct {
	sel        Selectors
	profileURL string
	origin     string
	now        func() time.Time
}

// NewHTML creates an HTML extractor for the given profile URL. Empty selector
// chains fall back to DefaultSelectors.
func NewHTML(profileURL string, sel Selectors) (*HTMLExtractor, error) {
	origin, err := originOf(profileURL)
	if err != nil {
		return nil, err
	}

	def := DefaultSelectors()
	if len(sel.Containers) == 0 {
		sel.Containers = def.Containers
	}
	if len(sel.Content) == 0 {
		sel.Content = def.Content
	}
	if len(sel.Timestamp) == 0 {
		sel.Timestamp = def.Timestamp
	}
	if len(sel.Link) == 0 {
		sel.Link = def.Link
	}

	return &HTMLExtractor{
		sel:        sel,
		profileURL: profileURL,
		origin:     origin,
		now:        time.Now,
	}, nil
}

// Extract parses the document and returns one record per post container, in
// document order. Containers with no recognizable post fields are skipped
// with a reason instead of aborting extraction.
func (e *HTMLExtractor) Extract(body string) ([]Record, []Skip) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, []Skip{{Index: -1, Reason: fmt.Sprintf("parse document: %v", err)}}
	}

	var (
		records []Record
		skips   []Skip
	)

	doc.Find(strings.Join(e.sel.Containers, ", ")).Each(func(i int, s *goquery.Selection) {
		rec, skip := e.extractOne(i, s)
		if skip != nil {
			skips = append(skips, *skip)
			return
		}
		records = append(records, rec)
	})

	return records, skips
}

func (e *HTMLExtractor) extractOne(index int, s *goquery.Selection) (Record, *Skip) {
	id, idOK := firstValue(s, childAttr("[data-id]", "data-id"), ownAttr("id"))
	content, contentOK := firstValue(s, childTextChain(e.sel.Content)...)
	ts, tsOK := firstValue(s, childAttrChain(e.sel.Timestamp, "datetime")...)
	link, linkOK := firstValue(s, childAttrChain(e.sel.Link, "href")...)

	// A container exposing none of the known fields is presentation
	// chrome, not a post.
	if !idOK && !contentOK && !tsOK && !linkOK {
		return Record{}, &Skip{Index: index, Reason: "no recognizable post fields"}
	}

	if !idOK {
		// Never drop a post purely for lacking an id.
		id = fmt.Sprintf("unknown-%d", e.now().Unix())
	}
	if !contentOK {
		content = ContentPlaceholder
	}
	if !tsOK {
		ts = e.now().Format(time.RFC3339)
	}
	if !linkOK {
		link = e.profileURL
	}

	return Record{
		ID:        id,
		Content:   content,
		Timestamp: ts,
		Link:      e.absolute(link),
	}, nil
}

// absolute rewrites a relative link against the site origin.
func (e *HTMLExtractor) absolute(link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return e.origin + link
}

func originOf(profileURL string) (string, error) {
	u, err := url.Parse(profileURL)
	if err != nil {
		return "", fmt.Errorf("parse profile url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("profile url %q: scheme and host are required", profileURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// fieldFn attempts to read one field from a container. It reports whether a
// usable value was found.
type fieldFn func(s *goquery.Selection) (string, bool)

// firstValue tries each strategy in order and returns the first hit.
func firstValue(s *goquery.Selection, fns ...fieldFn) (string, bool) {
	for _, fn := range fns {
		if v, ok := fn(s); ok {
			return v, true
		}
	}
	return "", false
}

// childAttr reads an attribute from the first descendant matching selector.
func childAttr(selector, name string) fieldFn {
	return func(s *goquery.Selection) (string, bool) {
		el := s.Find(selector).First()
		if el.Length() == 0 {
			return "", false
		}
		v, ok := el.Attr(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// ownAttr reads an attribute from the container node itself.
func ownAttr(name string) fieldFn {
	return func(s *goquery.Selection) (string, bool) {
		v, ok := s.Attr(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// childText reads the trimmed text of the first descendant matching selector.
func childText(selector string) fieldFn {
	return func(s *goquery.Selection) (string, bool) {
		el := s.Find(selector).First()
		if el.Length() == 0 {
			return "", false
		}
		v := strings.TrimSpace(el.Text())
		return v, v != ""
	}
}

func childAttrChain(selectors []string, name string) []fieldFn {
	fns := make([]fieldFn, 0, len(selectors))
	for _, sel := range selectors {
		fns = append(fns, childAttr(sel, name))
	}
	return fns
}

func childTextChain(selectors []string) []fieldFn {
	fns := make([]fieldFn, 0, len(selectors))
	for _, sel := range selectors {
		fns = append(fns, childText(sel))
	}
	return fns
}

// Scraper fetches the profile page over HTTP and runs an extractor on the body.
type Scraper struct {
	pageURL   string
	extractor Extractor
	client    *http.Client
	log       zerolog.Logger
}

// NewScraper creates a scraper for the given page URL.
func NewScraper(pageURL string, ex Extractor, logger zerolog.Logger) (*Scraper, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, errors.New("scrape: page URL is required")
	}
	if ex == nil {
		return nil, errors.New("scrape: extractor is required")
	}
	return &Scraper{
		pageURL:   pageURL,
		extractor: ex,
		client:    &http.Client{Timeout: fetchTimeout},
		log:       logger,
	}, nil
}

// Fetch downloads the page and extracts post records in document order.
// Network errors and non-2xx responses are soft failures: they are logged
// and yield an empty slice, so a flaky fetch reads as "no posts found".
func (s *Scraper) Fetch(ctx context.Context) []Record {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		s.log.Error().Err(err).Str("url", s.pageURL).Msg("build fetch request")
		return nil
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Str("url", s.pageURL).Msg("fetch profile page")
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn().Int("status", resp.StatusCode).Str("url", s.pageURL).Msg("fetch profile page")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Warn().Err(err).Str("url", s.pageURL).Msg("read profile page")
		return nil
	}

	records, skips := s.extractor.Extract(string(body))
	for _, sk := range skips {
		s.log.Warn().Int("container", sk.Index).Str("reason", sk.Reason).Msg("skipped post container")
	}
	return records
}
