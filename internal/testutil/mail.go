package testutil

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ingester-go/internal/ingest"
)

// FakeMailSource serves a fixed set of messages, filtered like a real search.
type FakeMailSource struct {
	Messages []ingest.InboundMessage
	Err      error
	Searches int
}

func (f *FakeMailSource) Search(_ context.Context, sender string, since time.Time) ([]ingest.InboundMessage, error) {
	f.Searches++
	if f.Err != nil {
		return nil, f.Err
	}
	var out []ingest.InboundMessage
	for _, m := range f.Messages {
		if m.From != "" && !strings.Contains(strings.ToLower(m.From), strings.ToLower(sender)) {
			continue
		}
		if !m.Date.IsZero() && m.Date.Before(since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// KindleMessage builds a Kindle export mail whose anchor has the given label.
func KindleMessage(label, href string, date time.Time) ingest.InboundMessage {
	return ingest.InboundMessage{
		Subject: "You sent a file from your Kindle",
		From:    ingest.DefaultKindleSender,
		Date:    date,
		HTML:    fmt.Sprintf(`<html><body><p>Your file is ready.</p><a href="%s">%s</a></body></html>`, href, label),
	}
}

// KindleURL builds a Kindle download link whose U parameter encodes fileName.
func KindleURL(fileName string) string {
	inner := "https://kindle-content.s3.amazonaws.com/exports/" + url.PathEscape(fileName) + "?X-Amz-Date=20240115T000000Z"
	return "https://www.amazon.com/gp/f.html?C=1ABC&K=2DEF&R=3&T=C&U=" + url.QueryEscape(inner) + "&A=XYZ"
}
