package archive

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ficsync/internal/fandom"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testTables = fandom.Tables{
	Map: map[string]string{
		"Fandom 1 the big boy": "Fandom 1",
	},
	Filter: map[string][]string{},
}

func testExtractor(t *testing.T) Extractor {
	t.Helper()
	base, err := url.Parse("https://archiveofourown.org")
	require.NoError(t, err)
	return Extractor{
		BaseUrl:          base,
		DownloadTemplate: "https://download.archiveofourown.org/downloads/%s/work.%s",
		Tables:           testTables,
	}
}

func loadDocument(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func parseDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseWorkPage(t *testing.T) {
	work, err := testExtractor(t).ParseWorkPage("123", loadDocument(t, "work.html"))
	require.NoError(t, err)

	require.Equal(t, "123", work.Id())
	require.Equal(t, "Chapter One", work.Title())
	require.Equal(t, "writer", work.Author())
	require.Equal(t, []string{"Fandom 1 the big boy"}, work.Fandoms())
	require.Equal(t, "Fandom 1", work.FilteredFandom())
	require.Equal(t, []string{"A/B"}, work.Relationships())
	require.Equal(t, []string{"A", "B"}, work.Characters())
	require.Equal(t, []string{"Fluff"}, work.AdditionalTags())

	expectedLinks := map[DownloadFormat]string{
		AZW3: "https://archiveofourown.org/downloads/123/Chapter%20One.azw3?updated_at=1",
		EPUB: "https://archiveofourown.org/downloads/123/Chapter%20One.epub?updated_at=1",
		MOBI: "https://archiveofourown.org/downloads/123/Chapter%20One.mobi?updated_at=1",
		PDF:  "https://archiveofourown.org/downloads/123/Chapter%20One.pdf?updated_at=1",
		HTML: "https://archiveofourown.org/downloads/123/Chapter%20One.html?updated_at=1",
	}
	if diff := cmp.Diff(expectedLinks, work.DownloadLinks()); diff != "" {
		t.Fatal("unexpected download links (-want +got)\n", diff)
	}

	expectedSeries := []SeriesLink{
		{SeriesId: "42", SeriesName: "My Series", PartInSeries: 1},
		{SeriesId: "77", SeriesName: "Other Series", PartInSeries: 3},
	}
	if diff := cmp.Diff(expectedSeries, work.SeriesLinks()); diff != "" {
		t.Fatal("unexpected series links (-want +got)\n", diff)
	}
}

func TestParseWorkPageFailures(t *testing.T) {
	cases := []struct {
		name  string
		html  string
		field string
	}{
		{
			name:  "missing title",
			html:  `<h3 class="byline heading"><a href="/users/a">a</a></h3>`,
			field: "title",
		},
		{
			name:  "missing author",
			html:  `<h2 class="title heading">T</h2>`,
			field: "author",
		},
		{
			name: "unknown download format",
			html: `<h2 class="title heading">T</h2>
				<h3 class="byline heading"><a href="/users/a">a</a></h3>
				<ul><li class="download"><ul><li><a href="/downloads/1/t.docx">DOCX</a></li></ul></li></ul>`,
			field: "download links",
		},
		{
			name: "unreadable series position",
			html: `<h2 class="title heading">T</h2>
				<h3 class="byline heading"><a href="/users/a">a</a></h3>
				<dl><dd class="series"><span class="series"><span class="position">Part one of <a href="/series/1">S</a></span></span></dd></dl>`,
			field: "series",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testExtractor(t).ParseWorkPage("9", parseDocument(t, tc.html))
			var extractErr *ExtractionError
			require.ErrorAs(t, err, &extractErr)
			require.Equal(t, "work", extractErr.Entity)
			require.Equal(t, "9", extractErr.Id)
			require.Equal(t, tc.field, extractErr.Field)
		})
	}
}

func TestParseWorkPageWithoutTags(t *testing.T) {
	work, err := testExtractor(t).ParseWorkPage("9", parseDocument(t, `
		<h2 class="title heading">Untagged</h2>
		<h3 class="byline heading">Anonymous</h3>`))
	require.NoError(t, err)

	require.Equal(t, "Anonymous", work.Author())
	require.Empty(t, work.Fandoms())
	require.NotNil(t, work.Fandoms())
	require.Equal(t, fandom.LabelUnknown, work.FilteredFandom())

	_, err = work.DownloadLink(EPUB)
	require.ErrorIs(t, err, ErrFormatUnavailable)
}

func TestParseWorkBlurb(t *testing.T) {
	doc := loadDocument(t, "series_page1.html")
	blurbs := doc.Find(selBlurb)
	require.Equal(t, 2, blurbs.Length())

	work, err := testExtractor(t).ParseWorkBlurb(blurbs.Eq(0), "My Series")
	require.NoError(t, err)

	require.Equal(t, "1", work.Id())
	require.Equal(t, "Chapter One", work.Title())
	require.Equal(t, "writer", work.Author())
	require.Equal(t, "Fandom 1", work.FilteredFandom())
	require.Equal(t, []string{"A/B"}, work.Relationships())
	require.Equal(t, []string{"A"}, work.Characters())
	require.Equal(t, []string{"Fluff"}, work.AdditionalTags())

	link, err := work.DownloadLink(EPUB)
	require.NoError(t, err)
	require.Equal(t, "https://download.archiveofourown.org/downloads/1/work.epub", link)
	require.Len(t, work.DownloadLinks(), len(AllDownloadFormats()))

	seriesLink, ok := work.SeriesLink("42")
	require.True(t, ok)
	require.Equal(t, SeriesLink{SeriesId: "42", SeriesName: "My Series", PartInSeries: 1}, seriesLink)
}

func TestParseWorkBlurbFailures(t *testing.T) {
	cases := []struct {
		name  string
		html  string
		field string
	}{
		{
			name:  "no heading",
			html:  `<li id="work_5" class="work blurb"></li>`,
			field: "title",
		},
		{
			name:  "title without work id",
			html:  `<li id="work_5" class="work blurb"><h4 class="heading"><a href="/users/x">T</a> by <a href="/users/a">a</a></h4></li>`,
			field: "id",
		},
		{
			name: "series ordinal missing",
			html: `<li id="work_5" class="work blurb">
				<h4 class="heading"><a href="/works/5">T</a> by <a href="/users/a">a</a></h4>
				<ul class="series"><li>Part of <a href="/series/1">S</a></li></ul></li>`,
			field: "series",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := parseDocument(t, "<ul>"+tc.html+"</ul>")
			_, err := testExtractor(t).ParseWorkBlurb(doc.Find(selBlurb), "S")
			var extractErr *ExtractionError
			require.ErrorAs(t, err, &extractErr)
			require.Equal(t, "work blurb", extractErr.Entity)
			require.Equal(t, tc.field, extractErr.Field)
		})
	}
}

func TestParseWorkBlurbAnonymous(t *testing.T) {
	doc := parseDocument(t, `<ul><li id="work_5" class="work blurb">
		<h4 class="heading"><a href="/works/5">Secret</a> by Anonymous</h4>
		<ul class="series"><li>Part <strong>4</strong> of <a href="/series/9"></a></li></ul>
	</li></ul>`)

	work, err := testExtractor(t).ParseWorkBlurb(doc.Find(selBlurb), "Fallback Title")
	require.NoError(t, err)
	require.Equal(t, "Anonymous", work.Author())

	link, ok := work.SeriesLink("9")
	require.True(t, ok)
	require.Equal(t, "Fallback Title", link.SeriesName)
	require.Equal(t, 4, link.PartInSeries)
}

func TestParseSeriesPosition(t *testing.T) {
	doc := parseDocument(t, `<span class="position">Part 2 of <a href="/series/31">The Long
		series Road</a></span>`)

	link, err := parseSeriesPosition(doc.Find("span.position"))
	require.NoError(t, err)
	require.Equal(t, SeriesLink{SeriesId: "31", SeriesName: "The Long Road", PartInSeries: 2}, link)
}

func TestParseSeriesPage(t *testing.T) {
	meta, err := testExtractor(t).ParseSeriesPage("42", loadDocument(t, "series_page1.html"))
	require.NoError(t, err)

	expected := SeriesMeta{
		Id:            "42",
		Title:         "My Series",
		Creator:       "writer",
		SeriesBegun:   "2021-03-04",
		SeriesUpdated: "2022-11-30",
		Description:   "Two stories, two fandoms.",
		NumWords:      12345,
		NumWorks:      2,
		NumBookmarks:  1024,
		IsCompleted:   true,
	}
	if diff := cmp.Diff(expected, meta); diff != "" {
		t.Fatal("unexpected series meta (-want +got)\n", diff)
	}
}

func TestParseSeriesPageOptionalFields(t *testing.T) {
	meta, err := testExtractor(t).ParseSeriesPage("3", parseDocument(t, `
		<h2 class="heading">The series of things</h2>
		<dl class="series meta group">
			<dd><a href="/users/a">a</a></dd>
			<dd>2020-01-01</dd>
			<dd>2020-02-02</dd>
			<dd><dl class="stats">
				<dd class="words">10</dd>
				<dd class="works">1</dd>
				<dd>No</dd>
			</dl></dd>
		</dl>`))
	require.NoError(t, err)

	require.Equal(t, "The of things", meta.Title)
	require.Equal(t, "", meta.Description)
	require.Equal(t, uint64(0), meta.NumBookmarks)
	require.False(t, meta.IsCompleted)
}

func TestParseSeriesPageFailures(t *testing.T) {
	cases := []struct {
		name  string
		html  string
		field string
	}{
		{
			name:  "missing title",
			html:  `<dl class="series meta group"><dd><a href="/users/a">a</a></dd></dl>`,
			field: "title",
		},
		{
			name:  "missing creator",
			html:  `<h2 class="heading">S</h2>`,
			field: "creator",
		},
		{
			name: "missing dates",
			html: `<h2 class="heading">S</h2>
				<dl class="series meta group"><dd><a href="/users/a">a</a></dd></dl>`,
			field: "series begun",
		},
		{
			name: "bad word count",
			html: `<h2 class="heading">S</h2>
				<dl class="series meta group"><dd><a href="/users/a">a</a></dd><dd>x</dd><dd>y</dd></dl>
				<dd class="words">many</dd><dd class="works">1</dd>`,
			field: "words",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testExtractor(t).ParseSeriesPage("3", parseDocument(t, tc.html))
			var extractErr *ExtractionError
			require.ErrorAs(t, err, &extractErr)
			require.Equal(t, "series", extractErr.Entity)
			require.Equal(t, tc.field, extractErr.Field)
		})
	}
}

func TestExtractionErrorMessage(t *testing.T) {
	err := &ExtractionError{Entity: "work", Id: "1", Field: "title", Err: errMissingElement}
	require.Equal(t, "extract work 1: title: element not found", err.Error())
	require.True(t, errors.Is(err, errMissingElement))
}
