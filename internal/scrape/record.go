package scrape

// Record is a single post observed on the watched profile page.
type Record struct {
	ID        string // opaque identifier; sole novelty key, stable across runs
	Content   string // text body; placeholder when unparseable
	Timestamp string // ISO-8601; used only for ordering within a batch
	Link      string // absolute URL to the original post
}

// Skip describes a container that could not be turned into a Record.
// Skips are values, not errors: one bad container never aborts the rest.
type Skip struct {
	Index  int // container position in document order
	Reason string
}

// Extractor turns a fetched document body into records.
type Extractor interface {
	Extract(body string) ([]Record, []Skip)
}
