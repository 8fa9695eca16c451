package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// linkLabels lists the anchor texts Kindle puts in its export mails, in priority order.
var linkLabels = []struct {
	text string
	kind Kind
}{
	{"Download PDF", KindDocument},
	{"Download text file", KindPlaintext},
}

// ExtractLinks returns at most one download descriptor per message, in input order.
// Messages without a recognised anchor, or whose HTML cannot be parsed, are skipped.
func ExtractLinks(messages []InboundMessage) []DownloadDescriptor {
	var out []DownloadDescriptor
	for _, msg := range messages {
		if d, ok := extractLink(msg.HTML); ok {
			out = append(out, d)
		}
	}
	return out
}

func extractLink(body string) (DownloadDescriptor, bool) {
	if strings.TrimSpace(body) == "" {
		return DownloadDescriptor{}, false
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return DownloadDescriptor{}, false
	}

	anchors := collectAnchors(doc, nil)
	for _, label := range linkLabels {
		for _, a := range anchors {
			if strings.TrimSpace(nodeText(a)) != label.text {
				continue
			}
			href := attr(a, "href")
			if href == "" {
				continue
			}
			return DownloadDescriptor{URL: href, Kind: label.kind}, true
		}
	}
	return DownloadDescriptor{}, false
}

// collectAnchors walks the tree in document order.
func collectAnchors(n *html.Node, acc []*html.Node) []*html.Node {
	if n.Type == html.ElementNode && n.Data == "a" {
		acc = append(acc, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		acc = collectAnchors(c, acc)
	}
	return acc
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
