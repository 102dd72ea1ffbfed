package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ficsync/internal/components/assert"
	"ficsync/internal/components/telemetry"
)

const report_downloader_series = "downloader.series"

// FileFetcher retrieves the bytes behind a download link, *Client
// implements it.
type FileFetcher interface {
	Download(ctx context.Context, link string) ([]byte, error)
}

// Downloader saves work files under a local root, standalone works at
// root/filename and series members at root/series/filename.
type Downloader struct {
	root    string
	fetcher FileFetcher
	opts    WalkOptions
	tel     telemetry.API
}

func NewDownloader(root string, fetcher FileFetcher, tel telemetry.API, opts WalkOptions) Downloader {
	assert.NotEmptyStr(root)
	assert.NotNil(fetcher)
	assert.NotNil(tel)
	return Downloader{
		root:    root,
		fetcher: fetcher,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("archive", tel),
	}
}

// DownloadWork saves a standalone work and returns the path it was written to.
func (d Downloader) DownloadWork(ctx context.Context, w *Work, format DownloadFormat) (string, error) {
	err := os.MkdirAll(d.root, 0o755)
	if err != nil {
		return "", err
	}
	path := WorkPath(d.root, w, format)
	return path, d.save(ctx, w, format, path)
}

// DownloadSeries saves every work of the series in listing order and returns
// the paths written.
func (d Downloader) DownloadSeries(ctx context.Context, s *Series, format DownloadFormat) ([]string, error) {
	err := os.MkdirAll(filepath.Join(d.root, s.Dirname()), 0o755)
	if err != nil {
		return nil, err
	}

	var (
		paths  []string
		failed []error
	)
	for _, w := range s.Works() {
		path := SeriesWorkPath(d.root, s, w, format)
		err := d.save(ctx, w, format, path)
		if err != nil {
			if !d.opts.ContinueOnError {
				return paths, err
			}
			d.tel.ReportWarning(report_downloader_series, err, s.Id())
			failed = append(failed, err)
			continue
		}
		paths = append(paths, path)
	}
	if len(failed) > 0 {
		return paths, &PartialError{Errs: failed}
	}
	return paths, nil
}

func (d Downloader) save(ctx context.Context, w *Work, format DownloadFormat, path string) error {
	link, err := w.DownloadLink(format)
	if err != nil {
		return err
	}
	d.tel.ReportDebug("download", w.Id(), format.String(), path)

	contents, err := d.fetcher.Download(ctx, link)
	if err != nil {
		return fmt.Errorf("download work %s: %w", w.Id(), err)
	}
	err = os.WriteFile(path, contents, 0o644)
	if err != nil {
		return fmt.Errorf("save work %s: %w", w.Id(), err)
	}
	return nil
}
