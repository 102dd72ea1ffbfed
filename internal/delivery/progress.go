package delivery

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress receives the number of bytes transferred so far.
type Progress interface {
	Set(done int64)
	Finish()
}

// ProgressFactory starts tracking the transfer of one file.
type ProgressFactory func(name string, total int64) Progress

type noProgress struct{}

func (noProgress) Set(int64) {}
func (noProgress) Finish()   {}

// NoProgress discards progress.
func NoProgress(string, int64) Progress {
	return noProgress{}
}

type bar struct {
	inner *progressbar.ProgressBar
}

func (b bar) Set(done int64) {
	b.inner.Set64(done)
}

func (b bar) Finish() {
	b.inner.Finish()
}

// ProgressBars draws a terminal progress bar per file to `out`.
func ProgressBars(out io.Writer) ProgressFactory {
	return func(name string, total int64) Progress {
		return bar{
			inner: progressbar.NewOptions64(
				total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription(name),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(0),
				progressbar.OptionOnCompletion(func() {
					io.WriteString(out, "\n")
				}),
			),
		}
	}
}
