package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"ingester-go/internal/ingest"
)

// DefaultMailbox is where Gmail keeps every message regardless of labels.
const DefaultMailbox = "[Gmail]/All Mail"

type IMAPOptions struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
}

// IMAPSource searches a mailbox over IMAP. Each Search opens its own
// connection and logs out afterwards; messages are fetched with BODY.PEEK so
// nothing is marked as read.
type IMAPSource struct {
	opts   IMAPOptions
	logger *slog.Logger
}

func NewIMAPSource(opts IMAPOptions, logger *slog.Logger) (*IMAPSource, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if opts.Mailbox == "" {
		opts.Mailbox = DefaultMailbox
	}
	return &IMAPSource{opts: opts, logger: logger}, nil
}

func (s *IMAPSource) Search(ctx context.Context, sender string, since time.Time) ([]ingest.InboundMessage, error) {
	client, cleanup, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := client.Select(s.opts.Mailbox, &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.opts.Mailbox, err)
	}

	criteria := &imapv2.SearchCriteria{
		Since:  since,
		Header: []imapv2.SearchCriteriaHeaderField{{Key: "From", Value: sender}},
	}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	uids := data.AllUIDs()
	s.debug("imap search done", "mailbox", s.opts.Mailbox, "from", sender, "matches", len(uids))
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	fetched, err := client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	messages := make([]ingest.InboundMessage, 0, len(fetched))
	for _, buf := range fetched {
		raw := buf.FindBodySection(section)
		if raw == nil {
			s.debug("imap message without body", "uid", buf.UID)
			continue
		}
		msg, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("message uid %d: %w", buf.UID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *IMAPSource) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	options := &imapclient.Options{}

	var (
		client *imapclient.Client
		err    error
	)
	if s.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         s.opts.Host,
			InsecureSkipVerify: s.opts.InsecureSkipVerify,
		}
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(s.opts.Username, s.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}
	s.debug("imap connection established", "address", address, "user", s.opts.Username, "tls", s.opts.UseTLS)

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil && s.logger != nil {
				s.logger.Warn("imap logout failed", "err", err)
			}
		}
		_ = client.Close()
	}
	return client, cleanup, nil
}

func (s *IMAPSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

var _ ingest.MailSource = (*IMAPSource)(nil)
