// Package restyutil writes full transcripts of the http exchanges a resty
// client makes, they are what to look at when the archive changes its markup
// and extraction starts failing.
package restyutil

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Output receives one transcript per response.
type Output interface {
	Write(id string, contents string)
}

type DirectoryOutput struct {
	directory string
}

// NewDirectoryOutput clears `dir` and writes transcripts into it.
func NewDirectoryOutput(dir string) (DirectoryOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return DirectoryOutput{}, err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return DirectoryOutput{}, err
	}
	return DirectoryOutput{directory: dir}, nil
}

func (o DirectoryOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write http transcript", "id", id, "err", err)
	}
}

var (
	unsafeChars  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashesAround = regexp.MustCompile(`^-+|-+$`)
)

// transcriptId numbers transcripts in the order responses arrive and names
// them after the request path, ex. "0003-GET-series-42.txt".
func transcriptId(n uint64, method, rawUrl string) string {
	name := rawUrl
	if parsed, err := url.Parse(rawUrl); err == nil {
		name = parsed.Path
	}
	name = unsafeChars.ReplaceAllString(name, "-")
	name = dashesAround.ReplaceAllString(name, "")
	if name == "" {
		name = "root"
	}
	return fmt.Sprintf("%04d-%s-%s.txt", n, method, name)
}

// Dump writes a transcript of every response `client` receives to `output`.
func Dump(client *resty.Client, output Output) {
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(&counter, 1)
		output.Write(transcriptId(n, res.Request.Method, res.Request.URL), formatHttpMessage(res))
		return nil
	})
}
