package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"ficsync/internal/archive"
	"ficsync/internal/components/assert"
	"ficsync/internal/components/telemetry"
	"ficsync/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_channel_deliver_work   = "channel.deliver-work"
	report_channel_deliver_series = "channel.deliver-series"
	report_channel_mkdir          = "channel.mkdir"
)

// RemoteFS is the part of a remote filesystem delivery needs, paths are
// POSIX paths.
//
// note: fault injection point
type RemoteFS interface {
	Lstat(path string) (os.FileInfo, error)
	Mkdir(path string) error
	Create(path string) (io.WriteCloser, error)
	Close() error
}

// Channel delivers files over a RemoteFS session, it must not be used
// concurrently.
type Channel struct {
	fs     RemoteFS
	device config.Device
	opts   DeliverOptions
	tel    telemetry.API
}

func NewChannel(fs RemoteFS, device config.Device, opts DeliverOptions, tel telemetry.API) *Channel {
	assert.NotNil(fs)
	assert.NotNil(tel)
	return &Channel{
		fs:     fs,
		device: device,
		opts:   opts.withDefaults(),
		tel:    telemetry.NewScopedAPI("delivery", tel),
	}
}

func (c *Channel) Close() error {
	return c.fs.Close()
}

// pathComponent keeps labels and titles from being read as nested folders.
func pathComponent(s string) string {
	return strings.ReplaceAll(s, "/", "-")
}

// RemotePath is root/label/filename, or root/label/seriesTitle/filename for
// works delivered as part of a series.
func RemotePath(root, label, seriesTitle, filename string) string {
	return path.Join(remoteDir(root, label, seriesTitle), filename)
}

func remoteDir(root, label, seriesTitle string) string {
	if seriesTitle == "" {
		return path.Join(root, pathComponent(label))
	}
	return path.Join(root, pathComponent(label), pathComponent(seriesTitle))
}

// EnsureDirs creates `dir` and whichever of its ancestors below `root` are
// missing. It probes from `dir` upward and stops at the first folder that
// exists, then creates the missing ones root to leaf. It returns the folders
// it created.
func EnsureDirs(fs RemoteFS, root, dir string) ([]string, error) {
	root = path.Clean(root)
	dir = path.Clean(dir)

	var missing []string
	current := dir
	for {
		_, err := fs.Lstat(current)
		if err == nil {
			break
		}
		missing = append(missing, current)
		parent := path.Dir(current)
		if current == root || parent == current {
			break
		}
		current = parent
	}

	created := make([]string, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		err := fs.Mkdir(missing[i])
		if err != nil {
			return created, &TransferError{Op: "mkdir", Path: missing[i], Err: err}
		}
		created = append(created, missing[i])
	}
	return created, nil
}

func (c *Channel) ensureDirs(dir string) error {
	created, err := EnsureDirs(c.fs, c.device.DestinationRoot, dir)
	if err != nil {
		c.tel.ReportBroken(report_channel_mkdir, err, c.device.Name)
		return err
	}
	for _, d := range created {
		c.tel.ReportDebug("created remote folder", c.device.Name, d)
	}
	return nil
}

// DeliverWork sends a standalone work to the folder of its fandom label.
func (c *Channel) DeliverWork(ctx context.Context, work *archive.Work, format archive.DownloadFormat) error {
	ctx, span := tracer.Start(ctx, "DeliverWork")
	defer span.End()
	span.SetAttributes(
		attribute.String("device", c.device.Name),
		attribute.String("work_id", work.Id()),
	)

	filename := work.Filename(format, "")
	remote := RemotePath(c.device.DestinationRoot, work.FilteredFandom(), "", filename)

	err := c.ensureDirs(path.Dir(remote))
	if err == nil {
		err = c.transfer(ctx, archive.WorkPath(c.opts.LocalRoot, work, format), remote)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deliver work")
		c.tel.ReportBroken(report_channel_deliver_work, err, c.device.Name, work.Id())
		return fmt.Errorf("deliver work %s to %s: %w", work.Id(), c.device.Name, err)
	}
	return nil
}

// DeliverSeries sends every work of the series into one folder named after
// the series, filed under the series' fandom label.
func (c *Channel) DeliverSeries(ctx context.Context, series *archive.Series, format archive.DownloadFormat) error {
	ctx, span := tracer.Start(ctx, "DeliverSeries")
	defer span.End()
	span.SetAttributes(
		attribute.String("device", c.device.Name),
		attribute.String("series_id", series.Id()),
	)

	dir := remoteDir(c.device.DestinationRoot, series.FilteredFandom(), series.Dirname())
	err := c.ensureDirs(dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create series folder")
		return fmt.Errorf("deliver series %s to %s: %w", series.Id(), c.device.Name, err)
	}

	var failed []error
	for _, work := range series.Works() {
		local := archive.SeriesWorkPath(c.opts.LocalRoot, series, work, format)
		remote := path.Join(dir, work.Filename(format, series.Id()))

		err := c.transfer(ctx, local, remote)
		if err == nil {
			continue
		}
		err = fmt.Errorf("deliver work %s to %s: %w", work.Id(), c.device.Name, err)
		span.RecordError(err)
		if !c.opts.ContinueOnError {
			span.SetStatus(codes.Error, "failed to deliver series")
			c.tel.ReportBroken(report_channel_deliver_series, err, series.Id())
			return err
		}
		c.tel.ReportWarning(report_channel_deliver_series, err, series.Id())
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		span.SetStatus(codes.Error, "some works were not delivered")
	}
	return errors.Join(failed...)
}

// transfer copies a local file to `remote` in chunks of the configured size,
// a failed write leaves a truncated remote file behind.
func (c *Channel) transfer(ctx context.Context, local, remote string) error {
	contents, err := os.ReadFile(local)
	if err != nil {
		return &TransferError{Op: "read", Path: local, Err: err}
	}

	f, err := c.fs.Create(remote)
	if err != nil {
		return &TransferError{Op: "create", Path: remote, Err: err}
	}

	total := int64(len(contents))
	progress := c.opts.Progress(path.Base(remote), total)
	defer progress.Finish()

	c.tel.ReportDebug("upload", c.device.Name, remote, total)

	var written int64
	for offset := 0; offset < len(contents); offset += c.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			f.Close()
			return &TransferError{Op: "write", Path: remote, Err: err}
		}
		end := min(offset+c.opts.ChunkSize, len(contents))
		n, err := f.Write(contents[offset:end])
		if err != nil {
			f.Close()
			return &TransferError{Op: "write", Path: remote, Err: err}
		}
		written += int64(n)
		progress.Set(min(written, total))
	}

	err = f.Close()
	if err != nil {
		return &TransferError{Op: "close", Path: remote, Err: err}
	}

	deliveredBytes.Add(ctx, written, metric.WithAttributes(attribute.String("device", c.device.Name)))
	return nil
}
