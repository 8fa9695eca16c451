package ingest_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ingester-go/internal/ingest"
	"ingester-go/internal/notes"
	"ingester-go/internal/testutil"
)

type serviceFixture struct {
	svc        *ingest.Service
	mail       *testutil.FakeMailSource
	wiki       *testutil.FakeWiki
	store      *notes.MemoryStore
	downloader *testutil.CountingDownloader
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := testutil.FixedClock()
	f := &serviceFixture{
		mail:       &testutil.FakeMailSource{},
		wiki:       &testutil.FakeWiki{},
		store:      notes.NewMemoryStore(),
		downloader: testutil.NewCountingDownloader(),
	}
	logger := ingest.NewNopLogger()
	router := ingest.NewRouter(f.store, f.downloader, ingest.NopLedger{}, logger, clock, testutil.NewStubIDGenerator())
	f.svc = ingest.NewService(f.mail, f.wiki, f.store, router, logger, clock, ingest.Options{
		JournalSender: "me+logseq@example.com",
	})
	return f
}

func TestService_IngestKindleEmails(t *testing.T) {
	today := testutil.FixedClock().Now()
	pdf := testutil.KindleURL("Sketch 2024-01-15.pdf")
	txt := testutil.KindleURL("Plans_2024-01-15.txt")
	missing := testutil.KindleURL("Lost 2024.pdf")

	setup := func(t *testing.T) *serviceFixture {
		f := newServiceFixture(t)
		f.mail.Messages = []ingest.InboundMessage{
			testutil.KindleMessage("Download PDF", pdf, today),
			testutil.KindleMessage("Download text file", txt, today),
			testutil.KindleMessage("Download PDF", missing, today),
			{From: ingest.DefaultKindleSender, Date: today, HTML: "<p>Your Kindle is ready</p>"},
			testutil.KindleMessage("Download PDF", testutil.KindleURL("Old.pdf"), today.AddDate(0, 0, -1)),
		}
		f.downloader.Payloads[pdf] = []byte("pdf")
		f.downloader.Payloads[txt] = []byte("plans")
		f.downloader.Status = 500
		return f
	}

	t.Run("routes every kind", func(t *testing.T) {
		f := setup(t)
		report, err := f.svc.IngestKindleEmails(context.Background(), "")
		if err != nil {
			t.Fatalf("IngestKindleEmails() error = %v", err)
		}
		want := ingest.KindleReport{Found: 3, Written: 2, Skipped: 0, Failed: 1}
		if *report != want {
			t.Errorf("report = %+v, want %+v", *report, want)
		}
		for _, p := range []string{"assets/sketch_2024-01-15.pdf", "pages/Kindle%2Fplans.md"} {
			if ok, _ := f.store.Exists(p); !ok {
				t.Errorf("%s not written", p)
			}
		}
	})

	t.Run("second run skips", func(t *testing.T) {
		f := setup(t)
		if _, err := f.svc.IngestKindleEmails(context.Background(), ""); err != nil {
			t.Fatalf("first IngestKindleEmails() error = %v", err)
		}
		report, err := f.svc.IngestKindleEmails(context.Background(), "")
		if err != nil {
			t.Fatalf("second IngestKindleEmails() error = %v", err)
		}
		if report.Skipped != 2 || report.Written != 0 {
			t.Errorf("report = %+v, want 2 skipped", *report)
		}
	})

	t.Run("filetype filter", func(t *testing.T) {
		f := setup(t)
		report, err := f.svc.IngestKindleEmails(context.Background(), "txt")
		if err != nil {
			t.Fatalf("IngestKindleEmails() error = %v", err)
		}
		if report.Found != 1 || report.Written != 1 {
			t.Errorf("report = %+v, want one txt written", *report)
		}
		if ok, _ := f.store.Exists("assets/sketch_2024-01-15.pdf"); ok {
			t.Error("pdf written despite txt filter")
		}
	})

	t.Run("unknown filetype", func(t *testing.T) {
		f := setup(t)
		if _, err := f.svc.IngestKindleEmails(context.Background(), "epub"); err == nil {
			t.Error("IngestKindleEmails() expected error for unknown filetype")
		}
		if f.mail.Searches != 0 {
			t.Error("mail searched despite invalid filetype")
		}
	})

	t.Run("malformed link aborts", func(t *testing.T) {
		f := setup(t)
		f.mail.Messages = []ingest.InboundMessage{
			testutil.KindleMessage("Download PDF", "https://www.amazon.com/gp/f.html?K=1", today),
			testutil.KindleMessage("Download PDF", pdf, today),
		}
		_, err := f.svc.IngestKindleEmails(context.Background(), "")
		if !errors.Is(err, ingest.ErrMalformedURL) {
			t.Fatalf("IngestKindleEmails() error = %v, want ErrMalformedURL", err)
		}
		if f.downloader.Calls() != 0 {
			t.Error("later links processed after fatal error")
		}
	})

	t.Run("cut-short download continues", func(t *testing.T) {
		f := setup(t)
		short := testutil.KindleURL("Draft 2024-01-15.pdf")
		f.mail.Messages = []ingest.InboundMessage{
			testutil.KindleMessage("Download PDF", short, today),
			testutil.KindleMessage("Download PDF", pdf, today),
		}
		f.downloader.Errs[short] = &ingest.DownloadError{URL: short, Status: 200, Err: io.ErrUnexpectedEOF}
		report, err := f.svc.IngestKindleEmails(context.Background(), "")
		if err != nil {
			t.Fatalf("IngestKindleEmails() error = %v", err)
		}
		if report.Failed != 1 || report.Written != 1 {
			t.Errorf("report = %+v, want 1 failed and 1 written", *report)
		}
		if ok, _ := f.store.Exists("assets/sketch_2024-01-15.pdf"); !ok {
			t.Error("link after the failed download was not routed")
		}
	})

	t.Run("mail failure", func(t *testing.T) {
		f := setup(t)
		f.mail.Err = errors.New("connection refused")
		if _, err := f.svc.IngestKindleEmails(context.Background(), ""); err == nil {
			t.Error("IngestKindleEmails() expected error when mail search fails")
		}
	})
}

func TestService_IngestConfluencePages(t *testing.T) {
	f := newServiceFixture(t)
	f.wiki.Spaces = map[string][]ingest.WikiPageSummary{
		"ENG": {
			{ID: "1", Title: "Release Plan: Q1 (draft)", Type: "page", WebPath: "ENG/pages/1"},
			{ID: "2", Title: "Team blog", Type: "blogpost", WebPath: "ENG/blog/2"},
		},
		"~jdoe": {
			{ID: "3", Title: "Scratch", Type: "page", WebPath: "~jdoe/pages/3"},
		},
	}
	f.wiki.Bodies = map[string]string{
		"1": "<p>Ship <strong>everything</strong></p>",
		"2": "<p>blog</p>",
		"3": "<p>private</p>",
	}

	n, err := f.svc.IngestConfluencePages(context.Background(), 1)
	if err != nil {
		t.Fatalf("IngestConfluencePages() error = %v", err)
	}
	if n != 1 {
		t.Errorf("IngestConfluencePages() = %d, want 1", n)
	}
	if len(f.wiki.Queried) != 1 || f.wiki.Queried[0] != "ENG" {
		t.Errorf("queried spaces = %v, want [ENG]", f.wiki.Queried)
	}

	page, ok := f.store.Get("pages/Confluence%2FRelease Plan Q1 draft.md")
	if !ok {
		t.Fatalf("page not written; vault has %v", f.store.Paths())
	}
	body := string(page)
	if !strings.HasPrefix(body, "from [Confluence](https://example.atlassian.net/wiki/spaces/ENG/pages/1)\n") {
		t.Errorf("page header = %q", body)
	}
	if !strings.Contains(body, "**everything**") {
		t.Errorf("page body not converted to markdown: %q", body)
	}

	// Pages are refreshed, not skipped.
	f.wiki.Bodies["1"] = "<p>Ship less</p>"
	if _, err := f.svc.IngestConfluencePages(context.Background(), 1); err != nil {
		t.Fatalf("second IngestConfluencePages() error = %v", err)
	}
	page, _ = f.store.Get("pages/Confluence%2FRelease Plan Q1 draft.md")
	if !strings.Contains(string(page), "Ship less") {
		t.Errorf("page not refreshed: %q", page)
	}
}

func TestService_IngestConfluencePages_InvalidDays(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.svc.IngestConfluencePages(context.Background(), 0); err == nil {
		t.Error("IngestConfluencePages(0) expected error")
	}
}

func TestService_IngestJournalEmails(t *testing.T) {
	f := newServiceFixture(t)
	today := testutil.FixedClock().Now()
	f.mail.Messages = []ingest.InboundMessage{
		{From: "Me <me+logseq@example.com>", Date: today, Text: "Buy milk\r\nand eggs\r\n"},
		{From: "me+logseq@example.com", Date: today, HTML: "<p>Call <em>Bob</em></p>"},
		{From: "me+logseq@example.com", Date: today, Text: "   "},
		{From: "someone@example.com", Date: today, Text: "not for the journal"},
		{From: "me+logseq@example.com", Date: today.Add(-48 * time.Hour), Text: "too old"},
	}

	n, err := f.svc.IngestJournalEmails(context.Background())
	if err != nil {
		t.Fatalf("IngestJournalEmails() error = %v", err)
	}
	if n != 2 {
		t.Errorf("IngestJournalEmails() = %d, want 2", n)
	}

	journal, _ := f.store.Get("journals/2024-01-15.md")
	lines := strings.Split(string(journal), "\n")
	if len(lines) != 3 {
		t.Fatalf("journal = %q, want 3 lines", journal)
	}
	if lines[0] != "- Buy milk" || lines[1] != "  and eggs" {
		t.Errorf("first block = %q", lines[:2])
	}
	if !strings.HasPrefix(lines[2], "- Call ") || !strings.Contains(lines[2], "Bob") {
		t.Errorf("second block = %q", lines[2])
	}
}

func TestJournalBlock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "one line", want: "- one line"},
		{in: "first\nsecond", want: "- first\n  second"},
		{in: "\n\n", want: ""},
	}
	for _, tt := range tests {
		if got := ingest.JournalBlock(tt.in); got != tt.want {
			t.Errorf("JournalBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
