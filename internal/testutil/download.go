package testutil

import (
	"context"
	"sync"

	"ingester-go/internal/ingest"
)

// CountingDownloader serves canned payloads keyed by URL and counts fetches.
// URLs listed in Errs fail with that error; URLs without a payload answer
// with Status (404 when unset).
type CountingDownloader struct {
	mu       sync.Mutex
	Payloads map[string][]byte
	Errs     map[string]error
	Status   int
	calls    int
}

func NewCountingDownloader() *CountingDownloader {
	return &CountingDownloader{Payloads: make(map[string][]byte), Errs: make(map[string]error)}
}

func (d *CountingDownloader) FetchBytes(_ context.Context, u string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if err, ok := d.Errs[u]; ok {
		return nil, err
	}
	data, ok := d.Payloads[u]
	if !ok {
		status := d.Status
		if status == 0 {
			status = 404
		}
		return nil, &ingest.DownloadError{URL: u, Status: status}
	}
	return data, nil
}

func (d *CountingDownloader) FetchText(ctx context.Context, u string) (string, error) {
	data, err := d.FetchBytes(ctx, u)
	return string(data), err
}

// Calls returns the number of fetches made so far.
func (d *CountingDownloader) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
