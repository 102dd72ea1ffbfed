package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText drops non-printable runes, trims the string and collapses runs of
// whitespace into a single space.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// Text returns the cleaned text of the first node in the selection, the
// second return value is false if the selection is empty.
func Text(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	return CleanText(GetText(sel.Nodes[0])), true
}

// Texts returns the cleaned text of every node in the selection in document
// order, it never returns nil.
func Texts(sel *goquery.Selection) []string {
	out := make([]string, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		out = append(out, CleanText(GetText(n)))
	}
	return out
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchors resolves the href of every anchor in the selection against
// `base`, anchors with unparseable hrefs are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Url:  link,
		})
	}
	return anchors
}

// PathSegment returns the path segment that follows `key` in the href, so
// PathSegment("/works/123/chapters/4", "works") returns "123".
func PathSegment(href, key string) (string, bool) {
	link, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(link.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == key && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}
