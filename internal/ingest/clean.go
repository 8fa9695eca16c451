package ingest

import "regexp"

// word matches one word character the way Kindle notebooks need it: any
// letter or digit, not just ASCII.
const word = `[\p{L}\p{N}_]`

// space matches Unicode whitespace, including no-break and vertical tab.
const space = `[\s\v\p{Z}\x{85}\x{1c}-\x{1f}]`

var (
	pageMarker  = regexp.MustCompile(`Page \p{Nd}+\n`)
	wrappedLine = regexp.MustCompile(`(` + word + `)\n(` + word + `)`)

	// Applied in order; each rewrite sees the output of the one before it.
	indentRewrites = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`\n(` + space + `*)-(` + space + `*)(` + word + `)`), "\n- ${3}"},
		{regexp.MustCompile(`\n(` + space + `*)+(` + space + `*)(` + word + `)`), "\n\t- ${3}"},
		{regexp.MustCompile(`\n(` + space + `*)*(` + space + `*)(` + word + `)`), "\n\t\t- ${3}"},
	}
)

// CleanText turns a raw Kindle notebook export into a Logseq outline.
// It is not idempotent: run it once per raw input.
func CleanText(raw string) string {
	text := stripPageMarkers(raw)
	text = joinWrappedLines(text)
	return convertIndents(text)
}

func stripPageMarkers(text string) string {
	return pageMarker.ReplaceAllString(text, "")
}

// joinWrappedLines undoes the hard wraps handwriting recognition inserts mid-sentence.
func joinWrappedLines(text string) string {
	return wrappedLine.ReplaceAllString(text, "${1} ${2}")
}

func convertIndents(text string) string {
	for _, r := range indentRewrites {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
