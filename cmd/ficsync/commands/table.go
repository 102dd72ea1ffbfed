package commands

import (
	"fmt"
	"os"
	"strings"

	"ficsync/internal/archive"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func list(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, "\n")
}

func renderWork(work *archive.Work) {
	t := newTable()
	t.SetTitle(work.Title())
	t.AppendRows([]table.Row{
		{"Id", work.Id()},
		{"Author", work.Author()},
		{"Filed under", work.FilteredFandom()},
		{"Fandoms", list(work.Fandoms())},
		{"Relationships", list(work.Relationships())},
		{"Characters", list(work.Characters())},
		{"Tags", list(work.AdditionalTags())},
	})

	var series []string
	for _, link := range work.SeriesLinks() {
		series = append(series, fmt.Sprintf("Part %d of %s (%s)", link.PartInSeries, link.SeriesName, link.SeriesId))
	}
	t.AppendRow(table.Row{"Series", list(series)})
	t.Render()
}

func renderSeries(series *archive.Series) {
	t := newTable()
	t.SetTitle(series.Title())
	completed := "No"
	if series.IsCompleted() {
		completed = "Yes"
	}
	t.AppendRows([]table.Row{
		{"Id", series.Id()},
		{"Creator", series.Creator()},
		{"Begun", series.SeriesBegun()},
		{"Updated", series.SeriesUpdated()},
		{"Words", series.NumWords()},
		{"Works", series.NumWorks()},
		{"Bookmarks", series.NumBookmarks()},
		{"Complete", completed},
		{"Authors", list(series.Authors())},
		{"Fandoms", list(series.Fandoms())},
		{"Filed under", series.FilteredFandom()},
	})
	if series.Description() != "" {
		t.AppendFooter(table.Row{"Description", series.Description()})
	}
	t.Render()

	works := newTable()
	works.AppendHeader(table.Row{"#", "Id", "Title", "Author", "Filed under"})
	for i, work := range series.Works() {
		part := i + 1
		if link, ok := work.SeriesLink(series.Id()); ok {
			part = link.PartInSeries
		}
		works.AppendRow(table.Row{part, work.Id(), work.Title(), work.Author(), work.FilteredFandom()})
	}
	works.Render()
}
