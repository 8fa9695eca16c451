package ingest

import (
	"context"
	"io"
	"time"
)

// MailSource returns the messages a sender delivered since a point in time.
// Reconnect and retry policy, if any, belongs to the implementation.
type MailSource interface {
	Search(ctx context.Context, sender string, since time.Time) ([]InboundMessage, error)
}

// Downloader fetches remote payloads. Implementations return *DownloadError
// for non-success responses.
type Downloader interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	FetchText(ctx context.Context, url string) (string, error)
}

// WikiPageSummary is one search hit from the wiki.
type WikiPageSummary struct {
	ID    string
	Title string
	Type  string
	// WebPath is the page path relative to the wiki's spaces root.
	WebPath string
}

// WikiClient is the subset of the wiki REST API the ingester needs.
type WikiClient interface {
	// SpaceKeys lists every space key visible to the user, personal spaces included.
	SpaceKeys(ctx context.Context) ([]string, error)

	// UpdatedPages returns content in space modified on or after since.
	UpdatedPages(ctx context.Context, space string, since time.Time) ([]WikiPageSummary, error)

	// PageBody returns the storage-format HTML body of a page.
	PageBody(ctx context.Context, id string) (string, error)

	// PageURL returns the browser URL for a summary.
	PageURL(summary WikiPageSummary) string
}

// NoteStore is the local note vault. Paths are relative to the vault root
// and use forward slashes.
type NoteStore interface {
	// Exists reports whether a file is present at rel.
	Exists(rel string) (bool, error)

	// WriteAsset stores a binary attachment under assets/ and returns its relative path.
	WriteAsset(name string, r io.Reader) (string, error)

	// WritePage stores a page under pages/ (".md" is appended) and returns its relative path.
	WritePage(name string, body string) (string, error)

	// AppendJournal appends block to the journal for day, creating it if needed.
	AppendJournal(day time.Time, block string) (string, error)

	// Remove deletes the file at rel. A missing file is not an error.
	Remove(rel string) error

	// Root returns the absolute vault root.
	Root() string
}

// ArtifactRecord is one ledger entry for a written artifact.
type ArtifactRecord struct {
	ID          string
	RunID       int64
	Name        string
	Kind        string
	Destination string
	SourceURL   string
	WrittenAt   time.Time
}

// Ledger records what was written. The vault remains the authority for dedup.
type Ledger interface {
	RecordArtifact(rec *ArtifactRecord) error
}

// NopLedger drops every record.
type NopLedger struct{}

func (NopLedger) RecordArtifact(*ArtifactRecord) error { return nil }

// Vault layout directories.
const (
	JournalsDir = "journals"
	PagesDir    = "pages"
	AssetsDir   = "assets"
)

// JournalName returns the journal file name for day.
func JournalName(day time.Time) string {
	return day.Format("2006-01-02") + ".md"
}
