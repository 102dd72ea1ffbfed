// Package delivery puts downloaded works onto reader devices.
package delivery

import (
	"context"
	"fmt"

	"ficsync/internal/archive"
	"ficsync/internal/components/telemetry"
	"ficsync/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("ficsync/internal/delivery")
	meter  = otel.Meter("ficsync/internal/delivery")
)

const DefaultChunkSize = config.DefaultChunkSize

// Deliverer sends downloaded work files to a single device, it holds one
// session to that device until it is closed.
type Deliverer interface {
	DeliverWork(ctx context.Context, work *archive.Work, format archive.DownloadFormat) error
	DeliverSeries(ctx context.Context, series *archive.Series, format archive.DownloadFormat) error
	Close() error
}

type DeliverOptions struct {
	// LocalRoot is the folder works were downloaded into.
	LocalRoot string
	// ChunkSize is the size of each remote write, defaults to DefaultChunkSize.
	ChunkSize int
	// Progress defaults to NoProgress.
	Progress ProgressFactory
	// ContinueOnError keeps delivering the rest of a series after a work
	// fails, the failures are returned joined.
	ContinueOnError bool
}

func (o DeliverOptions) withDefaults() DeliverOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Progress == nil {
		o.Progress = NoProgress
	}
	return o
}

// Open connects to a device with the protocol it is configured for.
func Open(ctx context.Context, device config.Device, opts DeliverOptions, tel telemetry.API) (Deliverer, error) {
	switch device.Protocol {
	case config.ProtocolSFTP, "":
		fs, err := DialSFTP(ctx, device)
		if err != nil {
			return nil, err
		}
		return NewChannel(fs, device, opts, tel), nil
	case config.ProtocolEmail:
		return NewMailer(device, opts, tel), nil
	default:
		return nil, fmt.Errorf("device %s: unknown protocol %q", device.Name, device.Protocol)
	}
}

// TransferError is a failed step of delivering a file.
type TransferError struct {
	// Op is one of read, connect, mkdir, create, write, close or send.
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err.Error())
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

var deliveredBytes metric.Int64Counter

func init() {
	var err error
	deliveredBytes, err = meter.Int64Counter(
		"ficsync.delivery.bytes",
		metric.WithDescription("Bytes of work files delivered to devices."),
		metric.WithUnit("By"),
	)
	if err != nil {
		otel.Handle(err)
	}
}
