package scrape

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const profileURL = "https://social.example.com/@someone"

func newTestExtractor(t *testing.T) *HTMLExtractor {
	t.Helper()
	ex, err := NewHTML(profileURL, Selectors{})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	ex.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return ex
}

func TestNewHTML_InvalidProfileURL(t *testing.T) {
	if _, err := NewHTML("not-a-url", Selectors{}); err == nil {
		t.Fatal("expected error for URL without scheme")
	}
	if _, err := NewHTML("", Selectors{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestExtract_FullyPopulatedContainers(t *testing.T) {
	ex := newTestExtractor(t)

	doc := `<html><body>
		<div class="status-card">
			<span data-id="101"></span>
			<div class="status__content">First post</div>
			<time datetime="2026-02-01T10:00:00Z"></time>
			<a class="status__relative-time" href="https://social.example.com/@someone/101">t</a>
		</div>
		<article class="status" id="102">
			<div class="post-content">Second post</div>
			<time datetime="2026-02-01T11:00:00Z"></time>
			<a class="post-link" href="/@someone/102">t</a>
		</article>
	</body></html>`

	records, skips := ex.Extract(doc)

	if len(skips) != 0 {
		t.Fatalf("skips = %v, want none", skips)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if first.ID != "101" {
		t.Errorf("first id = %q, want 101", first.ID)
	}
	if first.Content != "First post" {
		t.Errorf("first content = %q", first.Content)
	}
	if first.Timestamp != "2026-02-01T10:00:00Z" {
		t.Errorf("first timestamp = %q", first.Timestamp)
	}
	if first.Link != "https://social.example.com/@someone/101" {
		t.Errorf("first link = %q", first.Link)
	}

	second := records[1]
	if second.ID != "102" {
		t.Errorf("second id = %q, want 102 (own id attribute fallback)", second.ID)
	}
	if second.Link != "https://social.example.com/@someone/102" {
		t.Errorf("second link = %q, want relative href resolved against origin", second.Link)
	}
}

func TestExtract_ResultMatchesDocumentOrder(t *testing.T) {
	ex := newTestExtractor(t)

	doc := `
		<article class="status" id="c"><div class="status__content">x</div></article>
		<div class="status-card" id="a"><div class="status__content">y</div></div>
		<article class="status" id="b"><div class="status__content">z</div></article>`

	records, _ := ex.Extract(doc)

	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if records[i].ID != id {
			t.Errorf("records[%d].ID = %q, want %q", i, records[i].ID, id)
		}
	}
}

func TestExtract_DataIDPreferredOverOwnID(t *testing.T) {
	ex := newTestExtractor(t)

	doc := `<div class="status-card" id="own">
		<span data-id="explicit"></span>
		<div class="status__content">p</div>
	</div>`

	records, _ := ex.Extract(doc)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].ID != "explicit" {
		t.Errorf("id = %q, want explicit", records[0].ID)
	}
}

func TestExtract_MissingFieldsGetDefaults(t *testing.T) {
	ex := newTestExtractor(t)

	// Only content present: id, timestamp, and link all fall back.
	doc := `<div class="status-card"><div class="status__content">lonely post</div></div>`

	records, skips := ex.Extract(doc)
	if len(skips) != 0 {
		t.Fatalf("skips = %v, want none", skips)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	rec := records[0]
	wantID := "unknown-1772366400" // fixed clock: 2026-03-01T12:00:00Z
	if rec.ID != wantID {
		t.Errorf("id = %q, want synthesized %q", rec.ID, wantID)
	}
	if rec.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q, want fixed clock", rec.Timestamp)
	}
	if rec.Link != profileURL {
		t.Errorf("link = %q, want profile URL", rec.Link)
	}
}

func TestExtract_UnparseableContentGetsPlaceholder(t *testing.T) {
	ex := newTestExtractor(t)

	doc := `<div class="status-card" id="55"><time datetime="2026-02-01T10:00:00Z"></time></div>`

	records, _ := ex.Extract(doc)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Content != ContentPlaceholder {
		t.Errorf("content = %q, want placeholder", records[0].Content)
	}
}

func TestExtract_MalformedContainerIsSkippedNotFatal(t *testing.T) {
	ex := newTestExtractor(t)

	doc := `
		<div class="status-card" id="1"><div class="status__content">one</div></div>
		<div class="status-card"><!-- nothing usable --></div>
		<div class="status-card" id="3"><div class="status__content">three</div></div>`

	records, skips := ex.Extract(doc)

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if len(skips) != 1 {
		t.Fatalf("skips = %d, want 1", len(skips))
	}
	if skips[0].Index != 1 {
		t.Errorf("skip index = %d, want 1", skips[0].Index)
	}
	if skips[0].Reason == "" {
		t.Error("skip reason is empty")
	}
}

func TestExtract_EmptyDocument(t *testing.T) {
	ex := newTestExtractor(t)

	records, skips := ex.Extract("")
	if len(records) != 0 || len(skips) != 0 {
		t.Errorf("records = %d, skips = %d, want 0 and 0", len(records), len(skips))
	}
}

func TestExtract_CustomSelectors(t *testing.T) {
	ex, err := NewHTML(profileURL, Selectors{
		Containers: []string{"li.entry"},
		Content:    []string{".body"},
		Timestamp:  []string{"time"},
		Link:       []string{"a.permalink"},
	})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	doc := `<ul>
		<li class="entry" id="9"><div class="body">custom markup</div>
			<a class="permalink" href="/p/9">link</a></li>
	</ul>`

	records, _ := ex.Extract(doc)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Content != "custom markup" {
		t.Errorf("content = %q", records[0].Content)
	}
	if records[0].Link != "https://social.example.com/p/9" {
		t.Errorf("link = %q", records[0].Link)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func scraperWithTransport(t *testing.T, rt roundTripFunc) *Scraper {
	t.Helper()
	ex := newTestExtractor(t)
	s, err := NewScraper(profileURL, ex, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.client = &http.Client{Transport: rt}
	return s
}

func htmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestFetch_SendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	s := scraperWithTransport(t, func(r *http.Request) (*http.Response, error) {
		gotUA = r.Header.Get("User-Agent")
		return htmlResponse(http.StatusOK, ""), nil
	})

	s.Fetch(context.Background())

	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("user-agent = %q, want a browser-like value", gotUA)
	}
}

func TestFetch_SuccessExtractsRecords(t *testing.T) {
	body := `<div class="status-card" id="77"><div class="status__content">hi</div></div>`
	s := scraperWithTransport(t, func(_ *http.Request) (*http.Response, error) {
		return htmlResponse(http.StatusOK, body), nil
	})

	records := s.Fetch(context.Background())
	if len(records) != 1 || records[0].ID != "77" {
		t.Fatalf("records = %v, want one record with id 77", records)
	}
}

func TestFetch_NonSuccessStatusIsSoftFailure(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		s := scraperWithTransport(t, func(_ *http.Request) (*http.Response, error) {
			return htmlResponse(status, "nope"), nil
		})

		if records := s.Fetch(context.Background()); records != nil {
			t.Errorf("status %d: records = %v, want nil", status, records)
		}
	}
}

func TestFetch_NetworkErrorIsSoftFailure(t *testing.T) {
	s := scraperWithTransport(t, func(_ *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	if records := s.Fetch(context.Background()); records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestNewScraper_Validation(t *testing.T) {
	ex := newTestExtractor(t)
	if _, err := NewScraper("", ex, zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if _, err := NewScraper(profileURL, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for nil extractor")
	}
}
