package ingest

import (
	"fmt"
	"time"
)

// InboundMessage is a decoded mail message handed over by a MailSource.
type InboundMessage struct {
	Subject string
	From    string
	Date    time.Time
	HTML    string
	Text    string
}

// Kind identifies what a download link points at.
type Kind int

const (
	KindDocument Kind = iota + 1
	KindPlaintext
)

// Extension returns the three-character file extension expected for the kind.
func (k Kind) Extension() string {
	switch k {
	case KindDocument:
		return "pdf"
	case KindPlaintext:
		return "txt"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindPlaintext:
		return "plaintext"
	default:
		return "unknown"
	}
}

// ParseFiletype maps the CLI --filetype value onto a kind filter.
// An empty value selects every kind and returns 0.
func ParseFiletype(filetype string) (Kind, error) {
	switch filetype {
	case "":
		return 0, nil
	case "pdf", ".pdf":
		return KindDocument, nil
	case "txt", ".txt":
		return KindPlaintext, nil
	default:
		return 0, fmt.Errorf("unknown filetype %q (want pdf or txt)", filetype)
	}
}

// DownloadDescriptor is a download link found in one inbound message.
type DownloadDescriptor struct {
	URL  string
	Kind Kind
}

// RouteResult reports what the router did with a descriptor.
type RouteResult int

const (
	RouteWritten RouteResult = iota + 1
	RouteSkippedExisting
)

func (r RouteResult) String() string {
	switch r {
	case RouteWritten:
		return "written"
	case RouteSkippedExisting:
		return "skipped_existing"
	default:
		return "unknown"
	}
}
