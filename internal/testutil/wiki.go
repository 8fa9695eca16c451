package testutil

import (
	"context"
	"fmt"
	"time"

	"ingester-go/internal/ingest"
)

// FakeWiki is an in-memory wiki keyed by space.
type FakeWiki struct {
	Spaces map[string][]ingest.WikiPageSummary
	Bodies map[string]string
	// Queried records the spaces UpdatedPages was called for.
	Queried []string
}

func (w *FakeWiki) SpaceKeys(context.Context) ([]string, error) {
	keys := make([]string, 0, len(w.Spaces))
	for k := range w.Spaces {
		keys = append(keys, k)
	}
	return keys, nil
}

func (w *FakeWiki) UpdatedPages(_ context.Context, space string, _ time.Time) ([]ingest.WikiPageSummary, error) {
	w.Queried = append(w.Queried, space)
	return w.Spaces[space], nil
}

func (w *FakeWiki) PageBody(_ context.Context, id string) (string, error) {
	body, ok := w.Bodies[id]
	if !ok {
		return "", fmt.Errorf("page %s not found", id)
	}
	return body, nil
}

func (w *FakeWiki) PageURL(s ingest.WikiPageSummary) string {
	return "https://example.atlassian.net/wiki/spaces/" + s.WebPath
}
