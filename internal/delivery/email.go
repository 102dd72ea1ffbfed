package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"ficsync/internal/archive"
	"ficsync/internal/components/assert"
	"ficsync/internal/components/telemetry"
	"ficsync/internal/config"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_mailer_send = "mailer.send"

// Mailer delivers works as e-mail attachments, one message per work, for
// readers that accept documents sent to an address.
type Mailer struct {
	device config.Device
	opts   DeliverOptions
	tel    telemetry.API
	send   func(mail *email.Email) error
}

func NewMailer(device config.Device, opts DeliverOptions, tel telemetry.API) *Mailer {
	assert.NotNil(tel)
	m := &Mailer{
		device: device,
		opts:   opts.withDefaults(),
		tel:    telemetry.NewScopedAPI("delivery", tel),
	}
	m.send = m.sendSmtp
	return m
}

func (m *Mailer) sendSmtp(mail *email.Email) error {
	addr := m.device.Address + ":" + strconv.Itoa(m.device.Port)
	err := mail.Send(addr, smtp.PlainAuth("", m.device.Username, m.device.Password, m.device.Address))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	return err
}

func (m *Mailer) Close() error {
	return nil
}

func (m *Mailer) mail(ctx context.Context, work *archive.Work, local, filename string) error {
	_, span := tracer.Start(ctx, "mail")
	defer span.End()
	span.SetAttributes(
		attribute.String("device", m.device.Name),
		attribute.String("work_id", work.Id()),
	)

	mail := email.NewEmail()
	mail.From = m.device.EmailFrom
	mail.To = []string{m.device.EmailTo}
	mail.Subject = work.Title()
	mail.Text = []byte(fmt.Sprintf("%s by %s", work.Title(), work.Author()))

	attachment, err := mail.AttachFile(local)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to attach work")
		return &TransferError{Op: "read", Path: local, Err: err}
	}

	progress := m.opts.Progress(filename, int64(len(attachment.Content)))
	defer progress.Finish()

	err = m.send(mail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send work")
		return &TransferError{Op: "send", Path: m.device.EmailTo, Err: err}
	}
	progress.Set(int64(len(attachment.Content)))
	return nil
}

// DeliverWork mails a standalone work.
func (m *Mailer) DeliverWork(ctx context.Context, work *archive.Work, format archive.DownloadFormat) error {
	err := m.mail(ctx, work, archive.WorkPath(m.opts.LocalRoot, work, format), work.Filename(format, ""))
	if err != nil {
		m.tel.ReportBroken(report_mailer_send, err, m.device.Name, work.Id())
		return fmt.Errorf("deliver work %s to %s: %w", work.Id(), m.device.Name, err)
	}
	return nil
}

// DeliverSeries mails every work of the series in listing order.
func (m *Mailer) DeliverSeries(ctx context.Context, series *archive.Series, format archive.DownloadFormat) error {
	var failed []error
	for _, work := range series.Works() {
		local := archive.SeriesWorkPath(m.opts.LocalRoot, series, work, format)
		err := m.mail(ctx, work, local, work.Filename(format, series.Id()))
		if err == nil {
			continue
		}
		err = fmt.Errorf("deliver work %s to %s: %w", work.Id(), m.device.Name, err)
		if !m.opts.ContinueOnError {
			m.tel.ReportBroken(report_mailer_send, err, series.Id())
			return err
		}
		m.tel.ReportWarning(report_mailer_send, err, series.Id())
		failed = append(failed, err)
	}
	return errors.Join(failed...)
}
