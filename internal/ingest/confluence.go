package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// ConfluencePageNamespace prefixes pages copied from the wiki.
const ConfluencePageNamespace = "Confluence%2F"

// WikiPage is a wiki page ready to be written to the vault.
type WikiPage struct {
	Title string
	URL   string
	HTML  string
}

// Markdown renders the page body with a link back to its source.
func (p WikiPage) Markdown() (string, error) {
	body, err := htmltomarkdown.ConvertString(p.HTML)
	if err != nil {
		return "", fmt.Errorf("converting %q to markdown: %w", p.Title, err)
	}
	return fmt.Sprintf("from [Confluence](%s)\n%s", p.URL, body), nil
}

// PageName returns the vault page name for the page: the title with
// everything except letters, numbers and whitespace removed.
func (p WikiPage) PageName() string {
	var b strings.Builder
	for _, r := range p.Title {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return ConfluencePageNamespace + b.String()
}

// IngestConfluencePages copies every page modified in the last days days,
// outside personal spaces, into the vault. Existing pages are overwritten.
// Returns the number of pages written.
func (s *Service) IngestConfluencePages(ctx context.Context, days int) (int, error) {
	if days < 1 {
		return 0, fmt.Errorf("days must be at least 1, got %d", days)
	}
	if s.wiki == nil {
		return 0, fmt.Errorf("no wiki client configured")
	}

	since := startOfDay(s.clock.Now()).AddDate(0, 0, -days)
	pages, err := s.updatedPagesSince(ctx, since)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("got pages from confluence", "count", len(pages))

	for _, page := range pages {
		body, err := page.Markdown()
		if err != nil {
			return 0, err
		}
		dest, err := s.notes.WritePage(page.PageName(), body)
		if err != nil {
			return 0, fmt.Errorf("writing page %q: %w", page.Title, err)
		}
		s.logger.Info("page written", "title", page.Title, "path", dest)
	}
	return len(pages), nil
}

func (s *Service) updatedPagesSince(ctx context.Context, since time.Time) ([]WikiPage, error) {
	keys, err := s.wiki.SpaceKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing spaces: %w", err)
	}

	var summaries []WikiPageSummary
	for _, key := range keys {
		if strings.HasPrefix(key, "~") {
			continue
		}
		found, err := s.wiki.UpdatedPages(ctx, key, since)
		if err != nil {
			s.logger.Error("space query failed", "space", key, "err", err)
			return nil, fmt.Errorf("querying space %s: %w", key, err)
		}
		for _, sum := range found {
			if sum.Type == "page" {
				summaries = append(summaries, sum)
			}
		}
	}

	pages := make([]WikiPage, 0, len(summaries))
	for _, sum := range summaries {
		html, err := s.wiki.PageBody(ctx, sum.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching page %s: %w", sum.ID, err)
		}
		pages = append(pages, WikiPage{Title: sum.Title, URL: s.wiki.PageURL(sum), HTML: html})
	}
	return pages, nil
}
