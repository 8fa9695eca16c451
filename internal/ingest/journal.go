package ingest

import (
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// IngestJournalEmails appends the body of every mail sent today to the
// journal address as a block in today's journal. Returns the number of blocks written.
func (s *Service) IngestJournalEmails(ctx context.Context) (int, error) {
	if s.opts.JournalSender == "" {
		return 0, fmt.Errorf("no journal address configured")
	}
	if s.mail == nil {
		return 0, fmt.Errorf("no mail source configured")
	}

	now := s.clock.Now()
	messages, err := s.mail.Search(ctx, s.opts.JournalSender, startOfDay(now))
	if err != nil {
		return 0, fmt.Errorf("searching journal mail: %w", err)
	}

	count := 0
	for _, msg := range messages {
		body, err := messageBody(msg)
		if err != nil {
			s.logger.Warn("skipping journal mail", "subject", msg.Subject, "err", err)
			continue
		}
		block := JournalBlock(body)
		if block == "" {
			continue
		}
		dest, err := s.notes.AppendJournal(now, block)
		if err != nil {
			return count, fmt.Errorf("appending journal block: %w", err)
		}
		s.logger.Debug("journal block appended", "subject", msg.Subject, "path", dest)
		count++
	}
	return count, nil
}

// messageBody prefers the plaintext part and falls back to converted HTML.
func messageBody(msg InboundMessage) (string, error) {
	if strings.TrimSpace(msg.Text) != "" {
		return msg.Text, nil
	}
	if strings.TrimSpace(msg.HTML) == "" {
		return "", nil
	}
	return htmltomarkdown.ConvertString(msg.HTML)
}

// JournalBlock formats text as one outline block: the first line gets the
// bullet, the rest are indented under it. Blank input yields "".
func JournalBlock(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(lines[0])
	for _, line := range lines[1:] {
		b.WriteString("\n  ")
		b.WriteString(line)
	}
	return b.String()
}
