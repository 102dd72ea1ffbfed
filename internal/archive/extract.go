package archive

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"ficsync/internal/fandom"
	"ficsync/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// selectors of a standalone work page
const (
	selWorkTitle          = "h2.title.heading"
	selWorkByline         = "h3.byline.heading"
	selWorkAuthor         = "h3.byline.heading>a"
	selWorkDownloads      = "li.download>ul>li>a"
	selWorkFandoms        = "dd.fandom.tags>ul>li>a"
	selWorkRelationships  = "dd.relationship.tags>ul>li>a"
	selWorkCharacters     = "dd.character.tags>ul>li>a"
	selWorkAdditionalTags = "dd.freeform.tags>ul>li>a"
	selWorkSeries         = "dd.series>span.series>span.position"
)

// selectors of a work blurb inside a listing
const (
	selBlurb               = "li.work.blurb"
	selBlurbHeading        = "h4.heading"
	selBlurbHeadingAnchors = "h4.heading>a"
	selBlurbFandoms        = "h5.fandoms.heading>a.tag"
	selBlurbRelationships  = "li.relationships>a.tag"
	selBlurbCharacters     = "li.characters>a.tag"
	selBlurbAdditionalTags = "li.freeforms>a.tag"
	selBlurbSeries         = "ul.series>li"
)

// selectors of a series page
const (
	selSeriesTitle       = "h2.heading"
	selSeriesCreator     = "dl.series.meta.group>dd>a"
	selSeriesMeta        = "dl.series.meta.group>dd"
	selSeriesDescription = "blockquote.userstuff>p"
	selSeriesWords       = "dd.words"
	selSeriesWorks       = "dd.works"
	selSeriesStats       = "dl.stats>dd"
	selSeriesBookmarks   = "dd.bookmarks>a"
	selPagination        = "ol.pagination.actions>li"
)

// Extractor turns archive pages into Works and Series.
type Extractor struct {
	// BaseUrl resolves the relative links found on pages.
	BaseUrl *url.URL
	// DownloadTemplate synthesizes download links for works found in listings,
	// it is formatted with the work id and the lowercase format extension.
	DownloadTemplate string
	Tables           fandom.Tables
}

var positionRegex = regexp.MustCompile(`^Part\s+(\d+)\s+of\b`)

// ParseWorkPage builds a Work from the work's own page.
func (e Extractor) ParseWorkPage(id string, doc *goquery.Document) (*Work, error) {
	const entity = "work"
	fail := func(field string, err error) error {
		return &ExtractionError{Entity: entity, Id: id, Field: field, Err: err}
	}
	root := doc.Selection

	title, ok := htmlutil.Text(root.Find(selWorkTitle))
	if !ok {
		return nil, fail("title", errMissingElement)
	}
	author, ok := htmlutil.Text(root.Find(selWorkAuthor))
	if !ok {
		// anonymous and orphaned works have no author link
		author, ok = htmlutil.Text(root.Find(selWorkByline))
		if !ok {
			return nil, fail("author", errMissingElement)
		}
	}

	downloadLinks := map[DownloadFormat]string{}
	for _, anchor := range htmlutil.GetAnchors(e.BaseUrl, root.Find(selWorkDownloads)) {
		format, err := ParseDownloadFormat(anchor.Name)
		if err != nil {
			return nil, fail("download links", err)
		}
		downloadLinks[format] = anchor.Url.String()
	}

	series := map[string]SeriesLink{}
	var seriesErr error
	root.Find(selWorkSeries).EachWithBreak(func(_ int, position *goquery.Selection) bool {
		link, err := parseSeriesPosition(position)
		if err != nil {
			seriesErr = fail("series", err)
			return false
		}
		series[link.SeriesId] = link
		return true
	})
	if seriesErr != nil {
		return nil, seriesErr
	}

	return newWork(entity, workFields{
		id:             id,
		title:          title,
		author:         author,
		downloadLinks:  downloadLinks,
		fandoms:        htmlutil.Texts(root.Find(selWorkFandoms)),
		relationships:  htmlutil.Texts(root.Find(selWorkRelationships)),
		characters:     htmlutil.Texts(root.Find(selWorkCharacters)),
		additionalTags: htmlutil.Texts(root.Find(selWorkAdditionalTags)),
		series:         series,
	}, e.Tables)
}

// parseSeriesPosition reads "Part <N> of <a href="/series/<id>">name</a>".
func parseSeriesPosition(position *goquery.Selection) (SeriesLink, error) {
	text := htmlutil.CleanText(position.Text())
	groups := positionRegex.FindStringSubmatch(text)
	if len(groups) < 2 {
		return SeriesLink{}, fmt.Errorf("unexpected series position %q", text)
	}
	part, err := strconv.Atoi(groups[1])
	if err != nil {
		return SeriesLink{}, fmt.Errorf("parse part in series: %w", err)
	}

	anchor := position.Find("a").First()
	href, _ := anchor.Attr("href")
	seriesId, ok := htmlutil.PathSegment(href, "series")
	if !ok {
		return SeriesLink{}, fmt.Errorf("series link %q has no series id", href)
	}

	return SeriesLink{
		SeriesId:     seriesId,
		SeriesName:   seriesTitle(anchor.Text()),
		PartInSeries: part,
	}, nil
}

// ParseWorkBlurb builds a Work from its summary in a series listing,
// `seriesTitle` names series links that carry no name of their own.
//
// Listings do not render a download menu so the links are synthesized from
// DownloadTemplate for every format.
func (e Extractor) ParseWorkBlurb(blurb *goquery.Selection, seriesTitle string) (*Work, error) {
	const entity = "work blurb"
	blurbId, _ := blurb.Attr("id")
	fail := func(field string, err error) error {
		return &ExtractionError{Entity: entity, Id: blurbId, Field: field, Err: err}
	}

	heading := blurb.Find(selBlurbHeadingAnchors)
	titleAnchor := heading.Eq(0)
	if titleAnchor.Length() == 0 {
		return nil, fail("title", errMissingElement)
	}
	href, _ := titleAnchor.Attr("href")
	id, ok := htmlutil.PathSegment(href, "works")
	if !ok {
		return nil, fail("id", fmt.Errorf("title link %q has no work id", href))
	}
	title, _ := htmlutil.Text(titleAnchor)

	var author string
	if heading.Length() > 1 {
		author, _ = htmlutil.Text(heading.Eq(1))
	} else {
		headingText, _ := htmlutil.Text(blurb.Find(selBlurbHeading))
		if strings.HasSuffix(headingText, "by Anonymous") {
			author = "Anonymous"
		}
	}

	downloadLinks := make(map[DownloadFormat]string, len(formatNames))
	for _, format := range AllDownloadFormats() {
		downloadLinks[format] = fmt.Sprintf(e.DownloadTemplate, id, format.Ext())
	}

	series := map[string]SeriesLink{}
	var seriesErr error
	blurb.Find(selBlurbSeries).EachWithBreak(func(_ int, li *goquery.Selection) bool {
		link, err := parseBlurbSeries(li, seriesTitle)
		if err != nil {
			seriesErr = fail("series", err)
			return false
		}
		series[link.SeriesId] = link
		return true
	})
	if seriesErr != nil {
		return nil, seriesErr
	}

	return newWork(entity, workFields{
		id:             id,
		title:          title,
		author:         author,
		downloadLinks:  downloadLinks,
		fandoms:        htmlutil.Texts(blurb.Find(selBlurbFandoms)),
		relationships:  htmlutil.Texts(blurb.Find(selBlurbRelationships)),
		characters:     htmlutil.Texts(blurb.Find(selBlurbCharacters)),
		additionalTags: htmlutil.Texts(blurb.Find(selBlurbAdditionalTags)),
		series:         series,
	}, e.Tables)
}

// parseBlurbSeries reads the ordinal element followed by the series link,
// the reverse of the order on a work page.
func parseBlurbSeries(li *goquery.Selection, seriesTitle string) (SeriesLink, error) {
	children := li.Children()
	if children.Length() < 2 {
		return SeriesLink{}, fmt.Errorf("expected ordinal and series link, got %d elements", children.Length())
	}

	ordinal := htmlutil.CleanText(children.Eq(0).Text())
	part, err := strconv.Atoi(ordinal)
	if err != nil {
		return SeriesLink{}, fmt.Errorf("parse part in series: %w", err)
	}

	anchor := children.Eq(1)
	href, _ := anchor.Attr("href")
	seriesId, ok := htmlutil.PathSegment(href, "series")
	if !ok {
		return SeriesLink{}, fmt.Errorf("series link %q has no series id", href)
	}
	name := htmlutil.CleanText(anchor.Text())
	if name == "" {
		name = seriesTitle
	}

	return SeriesLink{
		SeriesId:     seriesId,
		SeriesName:   name,
		PartInSeries: part,
	}, nil
}

// ParseSeriesPage reads the series-level fields of a listing page.
func (e Extractor) ParseSeriesPage(id string, doc *goquery.Document) (SeriesMeta, error) {
	fail := func(field string, err error) error {
		return &ExtractionError{Entity: "series", Id: id, Field: field, Err: err}
	}
	root := doc.Selection

	heading, ok := htmlutil.Text(root.Find(selSeriesTitle))
	if !ok {
		return SeriesMeta{}, fail("title", errMissingElement)
	}
	title := seriesTitle(heading)
	if title == "" {
		return SeriesMeta{}, fail("title", errMissingElement)
	}
	creator, ok := htmlutil.Text(root.Find(selSeriesCreator))
	if !ok {
		return SeriesMeta{}, fail("creator", errMissingElement)
	}

	// the first dd is the creator
	meta := root.Find(selSeriesMeta)
	begun, ok := htmlutil.Text(meta.Eq(1))
	if !ok {
		return SeriesMeta{}, fail("series begun", errMissingElement)
	}
	updated, ok := htmlutil.Text(meta.Eq(2))
	if !ok {
		return SeriesMeta{}, fail("series updated", errMissingElement)
	}

	description, _ := htmlutil.Text(root.Find(selSeriesDescription))

	numWords, err := parseCount(root.Find(selSeriesWords), true)
	if err != nil {
		return SeriesMeta{}, fail("words", err)
	}
	numWorks, err := parseCount(root.Find(selSeriesWorks), true)
	if err != nil {
		return SeriesMeta{}, fail("works", err)
	}
	numBookmarks, err := parseCount(root.Find(selSeriesBookmarks), false)
	if err != nil {
		return SeriesMeta{}, fail("bookmarks", err)
	}

	completed, _ := htmlutil.Text(root.Find(selSeriesStats).Eq(2))

	return SeriesMeta{
		Id:            id,
		Title:         title,
		Creator:       creator,
		SeriesBegun:   begun,
		SeriesUpdated: updated,
		Description:   description,
		NumWords:      numWords,
		NumWorks:      numWorks,
		NumBookmarks:  numBookmarks,
		IsCompleted:   completed == "Yes",
	}, nil
}

// seriesTitle drops the standalone word "series" some headings carry.
func seriesTitle(heading string) string {
	words := strings.Fields(heading)
	kept := words[:0]
	for _, w := range words {
		if w != "series" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// parseCount parses a displayed number like "12,345", an absent optional
// count is 0.
func parseCount(sel *goquery.Selection, required bool) (uint64, error) {
	text, ok := htmlutil.Text(sel)
	if !ok {
		if required {
			return 0, errMissingElement
		}
		return 0, nil
	}
	text = strings.NewReplacer(",", "", ".", "").Replace(text)
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PageCount derives the number of listing pages from the number of items in
// the pagination widgets.
//
// The widget is rendered twice (above and below the listing) and each copy has
// a previous and a next item besides the numbered pages, hence count/2 - 2.
// This depends on the archive's current markup. No widget means one page.
func PageCount(items int) int {
	if items == 0 {
		return 1
	}
	return max(items/2-2, 1)
}

func paginationItems(doc *goquery.Document) int {
	return doc.Find(selPagination).Length()
}
