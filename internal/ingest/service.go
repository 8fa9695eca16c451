package ingest

import (
	"context"
	"errors"
	"fmt"
)

// Options holds the addresses the service searches mail for.
type Options struct {
	KindleSender  string
	JournalSender string
}

// DefaultKindleSender is the address Kindle export mails come from.
const DefaultKindleSender = "do-not-reply@amazon.com"

// Service is the orchestration layer behind the CLI commands. Collaborators
// a command does not use may be nil.
type Service struct {
	mail   MailSource
	wiki   WikiClient
	notes  NoteStore
	router *Router
	logger Logger
	clock  Clock
	opts   Options
}

// NewService creates a Service with the provided dependencies.
func NewService(mail MailSource, wiki WikiClient, notes NoteStore, router *Router, logger Logger, clock Clock, opts Options) *Service {
	if opts.KindleSender == "" {
		opts.KindleSender = DefaultKindleSender
	}
	return &Service{
		mail:   mail,
		wiki:   wiki,
		notes:  notes,
		router: router,
		logger: logger,
		clock:  clock,
		opts:   opts,
	}
}

// KindleReport summarises one Kindle ingest run.
type KindleReport struct {
	Found   int
	Written int
	Skipped int
	Failed  int
}

// IngestKindleEmails routes every Kindle export link mailed today.
// filetype is "", "pdf" or "txt".
func (s *Service) IngestKindleEmails(ctx context.Context, filetype string) (*KindleReport, error) {
	only, err := ParseFiletype(filetype)
	if err != nil {
		return nil, err
	}
	if s.mail == nil {
		return nil, fmt.Errorf("no mail source configured")
	}

	since := startOfDay(s.clock.Now())
	messages, err := s.mail.Search(ctx, s.opts.KindleSender, since)
	if err != nil {
		return nil, fmt.Errorf("searching kindle mail: %w", err)
	}
	s.logger.Debug("kindle mail fetched", "count", len(messages), "since", since.Format("2006-01-02"))

	report := &KindleReport{}
	for _, d := range ExtractLinks(messages) {
		if only != 0 && d.Kind != only {
			continue
		}
		report.Found++

		result, err := s.router.Route(ctx, d)
		switch {
		case err == nil:
		case errors.Is(err, ErrDownloadFailed),
			errors.Is(err, ErrDateTokenMissing),
			errors.Is(err, ErrExtensionMismatch):
			s.logger.Error("artifact abandoned", "url", d.URL, "err", err)
			report.Failed++
			continue
		default:
			return report, fmt.Errorf("routing kindle link: %w", err)
		}

		if result == RouteSkippedExisting {
			report.Skipped++
		} else {
			report.Written++
		}
	}

	s.logger.Info("kindle ingest complete",
		"found", report.Found, "written", report.Written, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
