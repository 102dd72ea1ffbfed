package htmlutil

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "  Part 1 of\n\t the thing ", expected: "Part 1 of the thing"},
		{input: "plain", expected: "plain"},
		{input: "\n\n", expected: ""},
	}
	for _, row := range table {
		require.Equal(t, row.expected, CleanText(row.input))
	}
}

func TestPathSegment(t *testing.T) {
	id, ok := PathSegment("/works/123/chapters/4", "works")
	require.True(t, ok)
	require.Equal(t, "123", id)

	id, ok = PathSegment("https://example.org/series/42?page=2", "series")
	require.True(t, ok)
	require.Equal(t, "42", id)

	_, ok = PathSegment("/series/", "series")
	require.False(t, ok)
	_, ok = PathSegment("/works/1", "series")
	require.False(t, ok)
}

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<ul><li><a href="/downloads/1/a.epub"> EPUB </a></li><li><a href="https://other.org/x">  Other
		link</a></li></ul>`,
	))
	require.NoError(t, err)

	base, err := url.Parse("https://archive.example")
	require.NoError(t, err)

	anchors := GetAnchors(base, doc.Find("a"))
	require.Len(t, anchors, 2)
	require.Equal(t, "EPUB", anchors[0].Name)
	require.Equal(t, "https://archive.example/downloads/1/a.epub", anchors[0].Url.String())
	require.Equal(t, "Other link", anchors[1].Name)
	require.Equal(t, "https://other.org/x", anchors[1].Url.String())

	text, ok := Text(doc.Find("li"))
	require.True(t, ok)
	require.Equal(t, "EPUB", text)
	require.Equal(t, []string{"EPUB", "Other link"}, Texts(doc.Find("li")))

	_, ok = Text(doc.Find("h1"))
	require.False(t, ok)
	require.Empty(t, Texts(doc.Find("h1")))
}
