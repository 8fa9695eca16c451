package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ingester-go/internal/ingest"
	"ingester-go/internal/notes"
	"ingester-go/internal/testutil"
)

type recordingLedger struct {
	records []*ingest.ArtifactRecord
	err     error
}

func (l *recordingLedger) RecordArtifact(rec *ingest.ArtifactRecord) error {
	l.records = append(l.records, rec)
	return l.err
}

type routerFixture struct {
	router     *ingest.Router
	store      *notes.MemoryStore
	downloader *testutil.CountingDownloader
	ledger     *recordingLedger
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		store:      notes.NewMemoryStore(),
		downloader: testutil.NewCountingDownloader(),
		ledger:     &recordingLedger{},
	}
	f.router = ingest.NewRouter(f.store, f.downloader, f.ledger, ingest.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())
	return f
}

func TestRouter_Route_Document(t *testing.T) {
	f := newRouterFixture(t)
	link := testutil.KindleURL("Scribe Sketch 2024-01-15.pdf")
	f.downloader.Payloads[link] = []byte("%PDF-1.7 sketch")

	result, err := f.router.Route(context.Background(), ingest.DownloadDescriptor{URL: link, Kind: ingest.KindDocument})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result != ingest.RouteWritten {
		t.Errorf("Route() = %v, want written", result)
	}

	asset, ok := f.store.Get("assets/scribe_sketch_2024-01-15.pdf")
	if !ok {
		t.Fatalf("asset not written; vault has %v", f.store.Paths())
	}
	if string(asset) != "%PDF-1.7 sketch" {
		t.Errorf("asset = %q", asset)
	}

	journal, ok := f.store.Get("journals/2024-01-15.md")
	if !ok {
		t.Fatal("journal not written")
	}
	want := "- ![scribe_sketch_2024-01-15.pdf](../assets/scribe_sketch_2024-01-15.pdf)"
	if string(journal) != want {
		t.Errorf("journal = %q, want %q", journal, want)
	}

	if len(f.ledger.records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(f.ledger.records))
	}
	rec := f.ledger.records[0]
	if rec.Destination != "assets/scribe_sketch_2024-01-15.pdf" || rec.Kind != "document" || rec.ID != "id-1" {
		t.Errorf("ledger record = %+v", rec)
	}
}

func TestRouter_Route_Plaintext(t *testing.T) {
	f := newRouterFixture(t)
	link := testutil.KindleURL("Weekly Review_2024-01-15.txt")
	f.downloader.Payloads[link] = []byte("Page 1\nGoals\n  - finish\nthe draft\n")

	result, err := f.router.Route(context.Background(), ingest.DownloadDescriptor{URL: link, Kind: ingest.KindPlaintext})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result != ingest.RouteWritten {
		t.Errorf("Route() = %v, want written", result)
	}

	page, ok := f.store.Get("pages/Kindle%2Fweekly_review.md")
	if !ok {
		t.Fatalf("page not written; vault has %v", f.store.Paths())
	}
	if want := "Goals\n- finish the draft\n"; string(page) != want {
		t.Errorf("page = %q, want %q", page, want)
	}
	if _, ok := f.store.Get("journals/2024-01-15.md"); ok {
		t.Error("plaintext routing should not touch the journal")
	}
}

func TestRouter_Route_SkipsExisting(t *testing.T) {
	f := newRouterFixture(t)
	link := testutil.KindleURL("Weekly Review_2024-01-15.txt")
	f.downloader.Payloads[link] = []byte("notes")
	d := ingest.DownloadDescriptor{URL: link, Kind: ingest.KindPlaintext}

	first, err := f.router.Route(context.Background(), d)
	if err != nil {
		t.Fatalf("first Route() error = %v", err)
	}
	second, err := f.router.Route(context.Background(), d)
	if err != nil {
		t.Fatalf("second Route() error = %v", err)
	}

	if first != ingest.RouteWritten {
		t.Errorf("first Route() = %v, want written", first)
	}
	if second != ingest.RouteSkippedExisting {
		t.Errorf("second Route() = %v, want skipped_existing", second)
	}
	if got := f.downloader.Calls(); got != 1 {
		t.Errorf("downloader called %d times, want 1", got)
	}
	if len(f.ledger.records) != 1 {
		t.Errorf("ledger has %d records, want 1", len(f.ledger.records))
	}
}

func TestRouter_Route_ExistingFileNotOverwritten(t *testing.T) {
	f := newRouterFixture(t)
	link := testutil.KindleURL("Sketch.pdf")
	f.store.Put("assets/sketch.pdf", []byte("original"))

	result, err := f.router.Route(context.Background(), ingest.DownloadDescriptor{URL: link, Kind: ingest.KindDocument})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result != ingest.RouteSkippedExisting {
		t.Errorf("Route() = %v, want skipped_existing", result)
	}
	data, _ := f.store.Get("assets/sketch.pdf")
	if string(data) != "original" {
		t.Errorf("asset overwritten: %q", data)
	}
	if f.downloader.Calls() != 0 {
		t.Errorf("downloader called %d times, want 0", f.downloader.Calls())
	}
}

func TestRouter_Route_DownloadFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.downloader.Status = 500
	link := testutil.KindleURL("Sketch.pdf")

	_, err := f.router.Route(context.Background(), ingest.DownloadDescriptor{URL: link, Kind: ingest.KindDocument})
	if !errors.Is(err, ingest.ErrDownloadFailed) {
		t.Fatalf("Route() error = %v, want ErrDownloadFailed", err)
	}
	var dlErr *ingest.DownloadError
	if !errors.As(err, &dlErr) || dlErr.Status != 500 {
		t.Errorf("Route() error = %v, want DownloadError with status 500", err)
	}
	if paths := f.store.Paths(); len(paths) != 0 {
		t.Errorf("vault has %v after failed download, want nothing", paths)
	}
	if len(f.ledger.records) != 0 {
		t.Error("failed download recorded in ledger")
	}
}

func TestRouter_Route_Errors(t *testing.T) {
	tests := []struct {
		name string
		d    ingest.DownloadDescriptor
		want error
	}{
		{
			name: "missing U parameter",
			d:    ingest.DownloadDescriptor{URL: "https://www.amazon.com/gp/f.html?K=1", Kind: ingest.KindDocument},
			want: ingest.ErrMalformedURL,
		},
		{
			name: "notebook without current year",
			d:    ingest.DownloadDescriptor{URL: testutil.KindleURL("Ideas 2023.txt"), Kind: ingest.KindPlaintext},
			want: ingest.ErrDateTokenMissing,
		},
		{
			name: "extension does not match kind",
			d:    ingest.DownloadDescriptor{URL: testutil.KindleURL("Ideas 2024.txt"), Kind: ingest.KindDocument},
			want: ingest.ErrExtensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			_, err := f.router.Route(context.Background(), tt.d)
			if !errors.Is(err, tt.want) {
				t.Errorf("Route() error = %v, want %v", err, tt.want)
			}
			if f.downloader.Calls() != 0 {
				t.Errorf("downloader called %d times, want 0", f.downloader.Calls())
			}
		})
	}
}

func TestRouter_Route_LedgerFailureIsNotFatal(t *testing.T) {
	f := newRouterFixture(t)
	f.ledger.err = errors.New("disk full")
	link := testutil.KindleURL("Sketch.pdf")
	f.downloader.Payloads[link] = []byte("pdf")

	result, err := f.router.Route(context.Background(), ingest.DownloadDescriptor{URL: link, Kind: ingest.KindDocument})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result != ingest.RouteWritten {
		t.Errorf("Route() = %v, want written", result)
	}
}

// failingJournalStore fails the next `failures` journal appends.
type failingJournalStore struct {
	*notes.MemoryStore
	failures int
}

func (s *failingJournalStore) AppendJournal(day time.Time, block string) (string, error) {
	if s.failures > 0 {
		s.failures--
		return "", errors.New("disk full")
	}
	return s.MemoryStore.AppendJournal(day, block)
}

func TestRouter_Route_JournalFailureRemovesAsset(t *testing.T) {
	store := &failingJournalStore{MemoryStore: notes.NewMemoryStore(), failures: 1}
	downloader := testutil.NewCountingDownloader()
	ledger := &recordingLedger{}
	router := ingest.NewRouter(store, downloader, ledger, ingest.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())

	link := testutil.KindleURL("Sketch.pdf")
	downloader.Payloads[link] = []byte("%PDF-1.7")
	d := ingest.DownloadDescriptor{URL: link, Kind: ingest.KindDocument}

	if _, err := router.Route(context.Background(), d); err == nil {
		t.Fatal("first Route() expected error when the journal append fails")
	}
	if paths := store.Paths(); len(paths) != 0 {
		t.Errorf("vault has %v after failed journal append, want nothing", paths)
	}
	if len(ledger.records) != 0 {
		t.Error("unlinked asset recorded in ledger")
	}

	result, err := router.Route(context.Background(), d)
	if err != nil {
		t.Fatalf("second Route() error = %v", err)
	}
	if result != ingest.RouteWritten {
		t.Errorf("second Route() = %v, want written", result)
	}
	if _, ok := store.Get("assets/sketch.pdf"); !ok {
		t.Error("asset not written on retry")
	}
	journal, ok := store.Get("journals/2024-01-15.md")
	if !ok || string(journal) != "- ![sketch.pdf](../assets/sketch.pdf)" {
		t.Errorf("journal = %q, %v", journal, ok)
	}
}
