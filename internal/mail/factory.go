package mail

import (
	"fmt"
	"log/slog"

	"ingester-go/internal/config"
	"ingester-go/internal/ingest"
)

// NewSourceFromConfig creates a MailSource based on the mail config type.
func NewSourceFromConfig(cfg config.MailConfig, logger *slog.Logger) (ingest.MailSource, error) {
	switch cfg.Type {
	case "imap", "":
		return NewIMAPSource(IMAPOptions{
			Host:               cfg.IMAPHost,
			Port:               cfg.IMAPPort,
			Username:           cfg.IMAPUsername,
			Password:           cfg.IMAPPassword,
			UseTLS:             !cfg.IMAPPlaintext,
			InsecureSkipVerify: cfg.IMAPInsecureSkipVerify,
			Mailbox:            cfg.IMAPMailbox,
		}, logger)
	case "mbox":
		return NewMboxSource(cfg.MboxPath)
	default:
		return nil, fmt.Errorf("unknown mail type: %s", cfg.Type)
	}
}
