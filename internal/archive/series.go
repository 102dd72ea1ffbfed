package archive

import (
	"slices"
	"sort"

	"ficsync/internal/fandom"
)

// SeriesMeta holds the series-level fields read from the first listing page.
type SeriesMeta struct {
	Id    string
	Title string
	// Creator is the first listed creator of the series.
	Creator string
	// SeriesBegun and SeriesUpdated are kept as the archive displays them.
	SeriesBegun   string
	SeriesUpdated string
	Description   string
	NumWords      uint64
	NumWorks      uint64
	NumBookmarks  uint64
	IsCompleted   bool
}

// Series is a series and every work listed in it, in listing order.
type Series struct {
	meta           SeriesMeta
	works          []*Work
	authors        map[string]struct{}
	fandoms        map[string]struct{}
	filteredFandom string
}

// newSeries is only called once every work of the series has been
// collected, the aggregates are derived here and never touched again.
func newSeries(meta SeriesMeta, works []*Work, authors, fandoms map[string]struct{}, tables fandom.Tables) *Series {
	union := make([]string, 0, len(fandoms))
	for f := range fandoms {
		union = append(union, f)
	}
	sort.Strings(union)

	return &Series{
		meta:           meta,
		works:          works,
		authors:        authors,
		fandoms:        fandoms,
		filteredFandom: fandom.Canonicalize(union, tables),
	}
}

func (s *Series) Id() string            { return s.meta.Id }
func (s *Series) Title() string         { return s.meta.Title }
func (s *Series) Creator() string       { return s.meta.Creator }
func (s *Series) SeriesBegun() string   { return s.meta.SeriesBegun }
func (s *Series) SeriesUpdated() string { return s.meta.SeriesUpdated }
func (s *Series) Description() string   { return s.meta.Description }
func (s *Series) NumWords() uint64      { return s.meta.NumWords }
func (s *Series) NumWorks() uint64      { return s.meta.NumWorks }
func (s *Series) NumBookmarks() uint64  { return s.meta.NumBookmarks }
func (s *Series) IsCompleted() bool     { return s.meta.IsCompleted }
func (s *Series) Meta() SeriesMeta      { return s.meta }

// FilteredFandom is computed from the raw fandoms of every work in the
// series, not from the works' own labels.
func (s *Series) FilteredFandom() string { return s.filteredFandom }

// Works returns the works in listing order.
func (s *Series) Works() []*Work {
	return slices.Clone(s.works)
}

func (s *Series) Authors() []string {
	return sortedSet(s.authors)
}

func (s *Series) Fandoms() []string {
	return sortedSet(s.fandoms)
}

// Dirname is the name of the folder the series' files are kept in.
func (s *Series) Dirname() string {
	return sanitizeComponent(s.meta.Title)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
