package archive

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"ficsync/internal/fandom"
)

// SeriesLink is a work's membership in one series.
type SeriesLink struct {
	SeriesId   string
	SeriesName string
	// PartInSeries is 1-based.
	PartInSeries int
}

// Work is the metadata of a single work. It cannot be changed after it is
// built by one of the Extractor's constructors.
type Work struct {
	id             string
	title          string
	author         string
	downloadLinks  map[DownloadFormat]string
	fandoms        []string
	filteredFandom string
	relationships  []string
	characters     []string
	additionalTags []string
	series         map[string]SeriesLink
}

type workFields struct {
	id             string
	title          string
	author         string
	downloadLinks  map[DownloadFormat]string
	fandoms        []string
	relationships  []string
	characters     []string
	additionalTags []string
	series         map[string]SeriesLink
}

// newWork is where both construction paths converge.
func newWork(entity string, f workFields, tables fandom.Tables) (*Work, error) {
	missing := func(field string) error {
		return &ExtractionError{Entity: entity, Id: f.id, Field: field, Err: errMissingElement}
	}
	if f.id == "" {
		return nil, missing("id")
	}
	if f.title == "" {
		return nil, missing("title")
	}
	if f.author == "" {
		return nil, missing("author")
	}

	w := &Work{
		id:             f.id,
		title:          f.title,
		author:         f.author,
		downloadLinks:  f.downloadLinks,
		fandoms:        nonNil(f.fandoms),
		relationships:  nonNil(f.relationships),
		characters:     nonNil(f.characters),
		additionalTags: nonNil(f.additionalTags),
		series:         f.series,
	}
	if w.downloadLinks == nil {
		w.downloadLinks = map[DownloadFormat]string{}
	}
	if w.series == nil {
		w.series = map[string]SeriesLink{}
	}
	w.filteredFandom = fandom.Canonicalize(w.fandoms, tables)
	return w, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (w *Work) Id() string     { return w.id }
func (w *Work) Title() string  { return w.title }
func (w *Work) Author() string { return w.author }

// FilteredFandom is the label the work is filed under.
func (w *Work) FilteredFandom() string { return w.filteredFandom }

func (w *Work) Fandoms() []string        { return slices.Clone(w.fandoms) }
func (w *Work) Relationships() []string  { return slices.Clone(w.relationships) }
func (w *Work) Characters() []string     { return slices.Clone(w.characters) }
func (w *Work) AdditionalTags() []string { return slices.Clone(w.additionalTags) }

func (w *Work) DownloadLinks() map[DownloadFormat]string {
	return maps.Clone(w.downloadLinks)
}

// DownloadLink returns the url the work can be downloaded in `format` from.
func (w *Work) DownloadLink(format DownloadFormat) (string, error) {
	link, ok := w.downloadLinks[format]
	if !ok {
		return "", fmt.Errorf("work %s as %s: %w", w.id, format, ErrFormatUnavailable)
	}
	return link, nil
}

// SeriesLinks returns the work's series memberships sorted by series id.
func (w *Work) SeriesLinks() []SeriesLink {
	out := make([]SeriesLink, 0, len(w.series))
	for _, link := range w.series {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SeriesId < out[j].SeriesId
	})
	return out
}

func (w *Work) SeriesLink(seriesId string) (SeriesLink, bool) {
	link, ok := w.series[seriesId]
	return link, ok
}

// Filename is "{title}.{ext}", or "{part} - {title}.{ext}" when the work is
// part of the series `seriesId`. Pass an empty seriesId for standalone works.
func (w *Work) Filename(format DownloadFormat, seriesId string) string {
	title := sanitizeComponent(w.title)
	if seriesId != "" {
		if link, ok := w.series[seriesId]; ok {
			return fmt.Sprintf("%d - %s.%s", link.PartInSeries, title, format.Ext())
		}
	}
	return fmt.Sprintf("%s.%s", title, format.Ext())
}

// sanitizeComponent keeps titles from being read as nested paths.
func sanitizeComponent(s string) string {
	return strings.ReplaceAll(s, "/", "-")
}

// WorkPath is the local path of a standalone work's file under `root`.
func WorkPath(root string, w *Work, format DownloadFormat) string {
	return filepath.Join(root, w.Filename(format, ""))
}

// SeriesWorkPath is the local path of a series member's file under `root`.
func SeriesWorkPath(root string, s *Series, w *Work, format DownloadFormat) string {
	return filepath.Join(root, s.Dirname(), w.Filename(format, s.Id()))
}
