package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ficsync/internal/components/telemetry"
	"ficsync/internal/fandom"

	"github.com/stretchr/testify/require"
)

type fakeFiles map[string][]byte

func (f fakeFiles) Download(_ context.Context, link string) ([]byte, error) {
	contents, ok := f[link]
	if !ok {
		return nil, fmt.Errorf("%s: %w", link, ErrNotFound)
	}
	return contents, nil
}

func seriesOfTwo(t *testing.T) *Series {
	t.Helper()
	var works []*Work
	for i, title := range []string{"Chapter One", "Chapter Two"} {
		id := fmt.Sprint(i + 1)
		works = append(works, testWork(t, workFields{
			id:     id,
			title:  title,
			author: "writer",
			downloadLinks: map[DownloadFormat]string{
				EPUB: "https://download.example.com/" + id + ".epub",
			},
			series: map[string]SeriesLink{"42": {SeriesId: "42", SeriesName: "My Series", PartInSeries: i + 1}},
		}))
	}
	return newSeries(SeriesMeta{Id: "42", Title: "My Series"}, works, nil, nil, fandom.Tables{})
}

func TestDownloadWork(t *testing.T) {
	root := filepath.Join(t.TempDir(), "downloads")
	work := testWork(t, workFields{
		id:            "1",
		title:         "Chapter One",
		author:        "writer",
		downloadLinks: map[DownloadFormat]string{EPUB: "https://download.example.com/1.epub"},
	})
	files := fakeFiles{"https://download.example.com/1.epub": []byte("epub bytes")}
	downloader := NewDownloader(root, files, &telemetry.Recorder{}, WalkOptions{})

	path, err := downloader.DownloadWork(context.Background(), work, EPUB)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "Chapter One.epub"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "epub bytes", string(contents))

	_, err = downloader.DownloadWork(context.Background(), work, PDF)
	require.ErrorIs(t, err, ErrFormatUnavailable)
}

func TestDownloadSeries(t *testing.T) {
	root := t.TempDir()
	files := fakeFiles{
		"https://download.example.com/1.epub": []byte("one"),
		"https://download.example.com/2.epub": []byte("two"),
	}
	downloader := NewDownloader(root, files, &telemetry.Recorder{}, WalkOptions{})

	paths, err := downloader.DownloadSeries(context.Background(), seriesOfTwo(t), EPUB)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "My Series", "1 - Chapter One.epub"),
		filepath.Join(root, "My Series", "2 - Chapter Two.epub"),
	}, paths)
}

func TestDownloadSeriesFailures(t *testing.T) {
	files := fakeFiles{"https://download.example.com/2.epub": []byte("two")}

	failFast := NewDownloader(t.TempDir(), files, &telemetry.Recorder{}, WalkOptions{})
	paths, err := failFast.DownloadSeries(context.Background(), seriesOfTwo(t), EPUB)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, paths)

	tel := &telemetry.Recorder{}
	lenient := NewDownloader(t.TempDir(), files, tel, WalkOptions{ContinueOnError: true})
	paths, err = lenient.DownloadSeries(context.Background(), seriesOfTwo(t), EPUB)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Errs, 1)
	require.Len(t, paths, 1)
	require.Len(t, tel.Find("warning"), 1)
}
