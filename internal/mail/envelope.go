package mail

import (
	"bytes"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"ingester-go/internal/ingest"
)

// Decode parses a raw RFC 5322 message into an InboundMessage.
// A missing or unparseable Date header leaves Date zero.
func Decode(raw []byte) (ingest.InboundMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ingest.InboundMessage{}, fmt.Errorf("decode message: %w", err)
	}

	msg := ingest.InboundMessage{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		HTML:    env.HTML,
		Text:    env.Text,
	}
	if date := env.GetHeader("Date"); date != "" {
		if t, err := netmail.ParseDate(date); err == nil {
			msg.Date = t
		}
	}
	return msg, nil
}

// matches reports whether msg came from sender on or after since.
func matches(msg ingest.InboundMessage, sender string, since time.Time) bool {
	if !strings.Contains(strings.ToLower(msg.From), strings.ToLower(sender)) {
		return false
	}
	return msg.Date.IsZero() || !msg.Date.Before(since)
}
