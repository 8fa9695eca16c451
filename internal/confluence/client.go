package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ingester-go/internal/ingest"
)

const (
	spacePageSize = 500
	searchLimit   = 1000
)

type Options struct {
	// Host is the site root, e.g. https://example.atlassian.net.
	Host  string
	Email string
	Token string
}

// Client talks to the Confluence Cloud REST API with basic auth (email and API token).
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

func NewClient(opts Options, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	opts.Host = strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	if opts.Host == "" {
		return nil, fmt.Errorf("atlassian host is empty")
	}
	if _, err := url.ParseRequestURI(opts.Host); err != nil {
		return nil, fmt.Errorf("invalid atlassian host %q: %w", opts.Host, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{opts: opts, http: httpClient, logger: logger}, nil
}

type spaceList struct {
	Results []struct {
		Key string `json:"key"`
	} `json:"results"`
	Size int `json:"size"`
}

func (c *Client) SpaceKeys(ctx context.Context) ([]string, error) {
	var keys []string
	for start := 0; ; start += spacePageSize {
		query := url.Values{}
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(spacePageSize))

		var page spaceList
		if err := c.getJSON(ctx, "/wiki/rest/api/space", query, &page); err != nil {
			return nil, fmt.Errorf("list spaces: %w", err)
		}
		for _, s := range page.Results {
			keys = append(keys, s.Key)
		}
		if len(page.Results) < spacePageSize {
			return keys, nil
		}
	}
}

type searchResults struct {
	Results []struct {
		Content struct {
			ID    string `json:"id"`
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"content"`
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"results"`
}

// UpdatedPages runs a CQL search for content in space last modified on or after since's date.
func (c *Client) UpdatedPages(ctx context.Context, space string, since time.Time) ([]ingest.WikiPageSummary, error) {
	cql := fmt.Sprintf("space=%s and lastmodified >= '%s'", space, since.Format(time.DateOnly))
	query := url.Values{}
	query.Set("cql", cql)
	query.Set("limit", strconv.Itoa(searchLimit))

	var res searchResults
	if err := c.getJSON(ctx, "/wiki/rest/api/search", query, &res); err != nil {
		if c.logger != nil {
			c.logger.Error("cql query failed", "query", cql, "err", err)
		}
		return nil, fmt.Errorf("cql %q: %w", cql, err)
	}

	out := make([]ingest.WikiPageSummary, 0, len(res.Results))
	for _, r := range res.Results {
		title := r.Title
		if title == "" {
			title = r.Content.Title
		}
		out = append(out, ingest.WikiPageSummary{
			ID:      r.Content.ID,
			Title:   title,
			Type:    r.Content.Type,
			WebPath: strings.TrimPrefix(r.URL, "/spaces/"),
		})
	}
	return out, nil
}

type contentBody struct {
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

func (c *Client) PageBody(ctx context.Context, id string) (string, error) {
	query := url.Values{}
	query.Set("expand", "body.storage")

	var content contentBody
	if err := c.getJSON(ctx, "/wiki/rest/api/content/"+url.PathEscape(id), query, &content); err != nil {
		return "", fmt.Errorf("get page %s: %w", id, err)
	}
	return content.Body.Storage.Value, nil
}

func (c *Client) PageURL(s ingest.WikiPageSummary) string {
	return c.opts.Host + "/wiki/spaces/" + s.WebPath
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.opts.Host + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.opts.Email, c.opts.Token)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug("confluence request", "path", path)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ ingest.WikiClient = (*Client)(nil)
