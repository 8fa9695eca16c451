package ingest

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	unsafeRun     = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// NormalizeFilename derives the vault file name from a Kindle download link.
//
// The original file name travels URL-encoded in the U query parameter. After
// cleaning, the last three characters are taken as the extension because the
// dot has been folded into an underscore run by then.
func NormalizeFilename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	encoded := u.Query().Get("U")
	if encoded == "" {
		return "", fmt.Errorf("%w: missing U parameter", ErrMalformedURL)
	}
	inner, err := url.Parse(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: parsing U parameter: %v", ErrMalformedURL, err)
	}

	segment := path.Base(inner.EscapedPath())
	display, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("%w: decoding file name: %v", ErrMalformedURL, err)
	}

	cleaned := unsafeRun.ReplaceAllString(display, "_")
	cleaned = strings.ToLower(cleaned)
	cleaned = underscoreRun.ReplaceAllString(cleaned, "_")
	if len(cleaned) < 4 {
		return "", fmt.Errorf("%w: file name %q too short", ErrMalformedURL, display)
	}

	ext := cleaned[len(cleaned)-3:]
	stem := strings.TrimRight(cleaned[:len(cleaned)-3], "_")
	if stem == "" {
		return "", fmt.Errorf("%w: file name %q has no stem", ErrMalformedURL, display)
	}
	return stem + "." + ext, nil
}

// splitName splits a normalized name into stem and extension.
func splitName(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// DatelessStem cuts stem at the first occurrence of year, also dropping the
// separator character in front of it.
func DatelessStem(stem string, year int) (string, error) {
	token := strconv.Itoa(year)
	i := strings.Index(stem, token)
	if i <= 1 {
		return "", fmt.Errorf("%w: %q has no %s", ErrDateTokenMissing, stem, token)
	}
	return stem[:i-1], nil
}
