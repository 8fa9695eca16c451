package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"ingester-go/internal/ingest"
)

// MboxSource searches a local mbox export, such as a Google Takeout archive.
// The file is re-read on every Search.
type MboxSource struct {
	path string
}

func NewMboxSource(path string) (*MboxSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &MboxSource{path: path}, nil
}

func (s *MboxSource) Search(ctx context.Context, sender string, since time.Time) ([]ingest.InboundMessage, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return ReadMbox(ctx, file, sender, since)
}

// ReadMbox decodes every message in r and keeps those from sender on or after since.
func ReadMbox(ctx context.Context, r io.Reader, sender string, since time.Time) ([]ingest.InboundMessage, error) {
	reader := mboxlib.NewReader(r)

	var out []ingest.InboundMessage
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("message %d read: %w", idx, err)
		}

		msg, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}
		if matches(msg, sender, since) {
			out = append(out, msg)
		}
	}
}

var _ ingest.MailSource = (*MboxSource)(nil)
