package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedURL is returned when a download link carries no usable U parameter.
	ErrMalformedURL = errors.New("malformed download url")

	// ErrDateTokenMissing is returned when a notebook name does not contain the current year.
	ErrDateTokenMissing = errors.New("date token missing from artifact name")

	// ErrDownloadFailed matches every *DownloadError.
	ErrDownloadFailed = errors.New("download failed")

	// ErrExtensionMismatch is returned when the normalized name does not end in the kind's extension.
	ErrExtensionMismatch = errors.New("artifact extension does not match link kind")
)

// DownloadError is returned by a Downloader when the remote answers with a
// non-success status, cannot be reached at all (Status 0, Err set), or cuts
// the body short (Status and Err set).
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download failed: %v", e.Err)
	}
	return fmt.Sprintf("download failed: status %d", e.Status)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func (e *DownloadError) Is(target error) bool {
	return target == ErrDownloadFailed
}
