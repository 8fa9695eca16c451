package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ingester-go/internal/ingest"
)

// UserAgent is sent with every request; Amazon's redirect endpoint rejects
// requests without one.
const UserAgent = "ingester/1.0"

const defaultTimeout = 60 * time.Second

// HTTPDownloader fetches artifacts over plain HTTP GET. Redirects are
// followed; any non-2xx final status, transport error or short body is a
// *ingest.DownloadError.
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader returns a downloader using client, or a client with a
// sixty second timeout when client is nil.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPDownloader{client: client}
}

func (d *HTTPDownloader) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ingest.DownloadError{URL: url, Status: resp.StatusCode, Err: err}
	}
	return body, nil
}

func (d *HTTPDownloader) FetchText(ctx context.Context, url string) (string, error) {
	body, err := d.FetchBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &ingest.DownloadError{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &ingest.DownloadError{URL: url, Status: resp.StatusCode}
	}
	return resp, nil
}

var _ ingest.Downloader = (*HTTPDownloader)(nil)
