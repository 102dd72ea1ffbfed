package archive

import (
	"context"
	"fmt"

	"ficsync/internal/components/assert"
	"ficsync/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_walker_parse_series = "walker.parse-series"
	report_walker_parse_work   = "walker.parse-work"
	report_walker_skip_blurb   = "walker.skip-blurb"
	report_walker_skip_page    = "walker.skip-page"
	report_walker_series_works = "walker.series-works"
)

// PageFetcher retrieves the rendered pages of the archive, the session it
// carries decides which restricted pages are visible.
//
// note: fault injection point
type PageFetcher interface {
	FetchWork(ctx context.Context, id string) (*goquery.Document, error)
	// FetchSeries fetches the 1-based page of a series listing.
	FetchSeries(ctx context.Context, id string, page int) (*goquery.Document, error)
}

type WalkOptions struct {
	// ContinueOnError skips failing pages and blurbs instead of aborting,
	// ParseSeries then returns what it could collect along with a
	// *PartialError.
	ContinueOnError bool
}

// Walker builds Works and Series out of the pages a PageFetcher returns.
type Walker struct {
	fetcher   PageFetcher
	extractor Extractor
	opts      WalkOptions
	tel       telemetry.API
}

func NewWalker(fetcher PageFetcher, extractor Extractor, tel telemetry.API, opts WalkOptions) Walker {
	assert.NotNil(fetcher)
	assert.NotNil(tel)
	return Walker{
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
		tel:       telemetry.NewScopedAPI("archive", tel),
	}
}

// ParseWork fetches and extracts a standalone work.
func (w Walker) ParseWork(ctx context.Context, id string) (*Work, error) {
	doc, err := w.fetcher.FetchWork(ctx, id)
	if err != nil {
		w.tel.ReportBroken(report_walker_parse_work, err, id)
		return nil, fmt.Errorf("fetch work %s: %w", id, err)
	}
	work, err := w.extractor.ParseWorkPage(id, doc)
	if err != nil {
		w.tel.ReportBroken(report_walker_parse_work, err, id)
		return nil, err
	}
	return work, nil
}

// ParseSeries walks every listing page of a series in order and builds the
// series out of the work blurbs found on them.
func (w Walker) ParseSeries(ctx context.Context, id string) (*Series, error) {
	first, err := w.fetcher.FetchSeries(ctx, id, 1)
	if err != nil {
		w.tel.ReportBroken(report_walker_parse_series, err, id)
		return nil, fmt.Errorf("fetch series %s: %w", id, err)
	}
	meta, err := w.extractor.ParseSeriesPage(id, first)
	if err != nil {
		w.tel.ReportBroken(report_walker_parse_series, err, id)
		return nil, err
	}

	pages := PageCount(paginationItems(first))
	w.tel.ReportDebug("walk series", id, "pages", pages)

	var (
		works   []*Work
		authors = map[string]struct{}{}
		fandoms = map[string]struct{}{}
		skipped []error
	)

	for page := 1; page <= pages; page++ {
		doc := first
		if page > 1 {
			doc, err = w.fetcher.FetchSeries(ctx, id, page)
			if err != nil {
				err = fmt.Errorf("fetch series %s page %d: %w", id, page, err)
				if !w.opts.ContinueOnError {
					w.tel.ReportBroken(report_walker_parse_series, err)
					return nil, err
				}
				w.tel.ReportWarning(report_walker_skip_page, err)
				skipped = append(skipped, err)
				continue
			}
		}

		var blurbErr error
		doc.Find(selBlurb).EachWithBreak(func(_ int, blurb *goquery.Selection) bool {
			work, err := w.extractor.ParseWorkBlurb(blurb, meta.Title)
			if err != nil {
				if !w.opts.ContinueOnError {
					blurbErr = err
					return false
				}
				w.tel.ReportWarning(report_walker_skip_blurb, err, id, page)
				skipped = append(skipped, err)
				return true
			}

			w.tel.ReportDebug("found work", work.Id())
			works = append(works, work)
			authors[work.Author()] = struct{}{}
			for _, f := range work.fandoms {
				fandoms[f] = struct{}{}
			}
			return true
		})
		if blurbErr != nil {
			w.tel.ReportBroken(report_walker_parse_series, blurbErr, id, page)
			return nil, blurbErr
		}
	}

	w.tel.ReportCount(report_walker_series_works, int64(len(works)))
	series := newSeries(meta, works, authors, fandoms, w.extractor.Tables)
	if len(skipped) > 0 {
		return series, &PartialError{Errs: skipped}
	}
	return series, nil
}
