package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
)

// KindlePageNamespace prefixes notebook pages; "%2F" is Logseq's encoding of "/".
const KindlePageNamespace = "Kindle%2F"

// Router writes one downloaded artifact into the note vault, or skips it when
// the destination already exists. The vault itself is the record of what has
// been processed.
type Router struct {
	notes      NoteStore
	downloader Downloader
	ledger     Ledger
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	runID      int64
}

// NewRouter creates a Router. ledger may be NopLedger{}.
func NewRouter(notes NoteStore, downloader Downloader, ledger Ledger, logger Logger, clock Clock, idgen IDGenerator) *Router {
	return &Router{
		notes:      notes,
		downloader: downloader,
		ledger:     ledger,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
	}
}

// SetRunID tags ledger records written from now on.
func (r *Router) SetRunID(id int64) {
	r.runID = id
}

// Destination returns the vault-relative path an artifact with the given
// normalized name and kind is stored at.
func (r *Router) Destination(name string, kind Kind) (string, error) {
	stem, ext := splitName(name)
	if ext != kind.Extension() {
		return "", fmt.Errorf("%w: %s is not a %s", ErrExtensionMismatch, name, kind)
	}

	switch kind {
	case KindDocument:
		return path.Join(AssetsDir, name), nil
	case KindPlaintext:
		dateless, err := DatelessStem(stem, r.clock.Now().Year())
		if err != nil {
			return "", err
		}
		return path.Join(PagesDir, KindlePageNamespace+dateless+".md"), nil
	default:
		return "", fmt.Errorf("unknown link kind %d", kind)
	}
}

// Route normalizes the descriptor's file name, checks the vault and, when the
// artifact is new, downloads and stores it.
func (r *Router) Route(ctx context.Context, d DownloadDescriptor) (RouteResult, error) {
	name, err := NormalizeFilename(d.URL)
	if err != nil {
		return 0, err
	}

	dest, err := r.Destination(name, d.Kind)
	if err != nil {
		return 0, err
	}

	exists, err := r.notes.Exists(dest)
	if err != nil {
		return 0, fmt.Errorf("checking %s: %w", dest, err)
	}
	if exists {
		r.logger.Debug("artifact already in vault", "name", name, "path", dest)
		return RouteSkippedExisting, nil
	}

	switch d.Kind {
	case KindDocument:
		dest, err = r.writeDocument(ctx, d.URL, name)
	case KindPlaintext:
		dest, err = r.writeNotebook(ctx, d.URL, path.Base(dest))
	}
	if err != nil {
		return 0, err
	}

	r.record(name, d, dest)
	r.logger.Info("artifact written", "name", name, "kind", d.Kind.String(), "path", dest)
	return RouteWritten, nil
}

func (r *Router) writeDocument(ctx context.Context, url, name string) (string, error) {
	data, err := r.downloader.FetchBytes(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", name, err)
	}

	dest, err := r.notes.WriteAsset(name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("writing asset %s: %w", name, err)
	}

	// An asset without its journal link is removed so a rerun writes both.
	block := fmt.Sprintf("- ![%s](../%s/%s)", name, AssetsDir, name)
	if _, err := r.notes.AppendJournal(r.clock.Now(), block); err != nil {
		err = fmt.Errorf("linking %s from journal: %w", name, err)
		if rmErr := r.notes.Remove(dest); rmErr != nil {
			return "", errors.Join(err, fmt.Errorf("removing unlinked asset %s: %w", dest, rmErr))
		}
		return "", err
	}
	return dest, nil
}

func (r *Router) writeNotebook(ctx context.Context, url, pageFile string) (string, error) {
	raw, err := r.downloader.FetchText(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageFile, err)
	}

	page := pageFile[:len(pageFile)-len(".md")]
	dest, err := r.notes.WritePage(page, CleanText(raw))
	if err != nil {
		return "", fmt.Errorf("writing page %s: %w", page, err)
	}
	return dest, nil
}

// record is best effort: the vault already holds the artifact.
func (r *Router) record(name string, d DownloadDescriptor, dest string) {
	rec := &ArtifactRecord{
		ID:          r.idgen.New(),
		RunID:       r.runID,
		Name:        name,
		Kind:        d.Kind.String(),
		Destination: dest,
		SourceURL:   d.URL,
		WrittenAt:   r.clock.Now(),
	}
	if err := r.ledger.RecordArtifact(rec); err != nil {
		r.logger.Warn("recording artifact failed", "name", name, "err", err)
	}
}
