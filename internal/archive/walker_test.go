package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ficsync/internal/components/telemetry"
	"ficsync/internal/fandom"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	works  map[string]*goquery.Document
	series map[int]*goquery.Document
	errs   map[int]error
	calls  []int
}

func (f *fakeFetcher) FetchWork(_ context.Context, id string) (*goquery.Document, error) {
	doc, ok := f.works[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (f *fakeFetcher) FetchSeries(_ context.Context, _ string, page int) (*goquery.Document, error) {
	f.calls = append(f.calls, page)
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	doc, ok := f.series[page]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func TestPageCount(t *testing.T) {
	cases := []struct {
		items    int
		expected int
	}{
		{items: 0, expected: 1},
		{items: 2, expected: 1},
		{items: 6, expected: 1},
		{items: 8, expected: 2},
		{items: 10, expected: 3},
		{items: 24, expected: 10},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.items), func(t *testing.T) {
			require.Equal(t, tc.expected, PageCount(tc.items))
		})
	}
}

func TestParseSeriesTwoPages(t *testing.T) {
	fetcher := &fakeFetcher{
		series: map[int]*goquery.Document{
			1: loadDocument(t, "series_page1.html"),
			2: loadDocument(t, "series_page2.html"),
		},
	}
	extractor := testExtractor(t)
	extractor.Tables = fandom.Tables{
		Map: map[string]string{"Fandom 1 the big boy": "Fandom 1"},
	}
	walker := NewWalker(fetcher, extractor, &telemetry.Recorder{}, WalkOptions{})

	series, err := walker.ParseSeries(context.Background(), "42")
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, fetcher.calls)
	require.Equal(t, "My Series", series.Title())
	require.Equal(t, fandom.LabelMultiple, series.FilteredFandom())

	works := series.Works()
	require.Len(t, works, 2)
	require.Equal(t, "1", works[0].Id())
	require.Equal(t, "Fandom 1", works[0].FilteredFandom())
	require.Equal(t, "2", works[1].Id())
	require.Equal(t, "Fandom 2", works[1].FilteredFandom())

	require.Equal(t, []string{"other", "writer"}, series.Authors())
	require.Equal(t, []string{"Fandom 1 the big boy", "Fandom 2"}, series.Fandoms())
}

func TestParseSeriesFailFast(t *testing.T) {
	fetcher := &fakeFetcher{
		series: map[int]*goquery.Document{
			1: loadDocument(t, "series_page1.html"),
		},
		errs: map[int]error{2: ErrTransport},
	}
	tel := &telemetry.Recorder{}
	walker := NewWalker(fetcher, testExtractor(t), tel, WalkOptions{})

	series, err := walker.ParseSeries(context.Background(), "42")
	require.ErrorIs(t, err, ErrTransport)
	require.Nil(t, series)
	require.NotEmpty(t, tel.Find("broken"))
}

func TestParseSeriesContinueOnError(t *testing.T) {
	page1 := loadDocument(t, "series_page1.html")
	// break the second blurb's title link
	page1.Find(selBlurb).Eq(1).Find("h4.heading>a").First().SetAttr("href", "/nowhere")

	fetcher := &fakeFetcher{
		series: map[int]*goquery.Document{1: page1},
		errs:   map[int]error{2: ErrTransport},
	}
	tel := &telemetry.Recorder{}
	walker := NewWalker(fetcher, testExtractor(t), tel, WalkOptions{ContinueOnError: true})

	series, err := walker.ParseSeries(context.Background(), "42")
	require.NotNil(t, series)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Errs, 2)
	require.ErrorIs(t, err, ErrTransport)

	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))

	require.Len(t, series.Works(), 1)
	require.Equal(t, "Fandom 1", series.FilteredFandom())
	require.Len(t, tel.Find("warning"), 2)
}

func TestParseWork(t *testing.T) {
	fetcher := &fakeFetcher{
		works: map[string]*goquery.Document{"123": loadDocument(t, "work.html")},
	}
	walker := NewWalker(fetcher, testExtractor(t), &telemetry.Recorder{}, WalkOptions{})

	work, err := walker.ParseWork(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, "Chapter One", work.Title())

	_, err = walker.ParseWork(context.Background(), "404")
	require.ErrorIs(t, err, ErrNotFound)
}
