package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/metrics"
)

// Deliverer sends a rendered report to its recipient.
type Deliverer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// ReportWorker delivers queued report emails over SMTP.
type ReportWorker struct {
	deliverer Deliverer
}

func NewReportWorker(deliverer Deliverer) *ReportWorker {
	return &ReportWorker{deliverer: deliverer}
}

// HandleReportEmail processes a single report email message from AMQP.
func (w *ReportWorker) HandleReportEmail(ctx context.Context, msg *amqp.ReportEmailMessage) error {
	slog.InfoContext(ctx, "Delivering report email",
		applog.FieldRecipient, msg.Recipient,
		applog.FieldOwnerID, msg.OwnerID)

	if err := w.deliverer.Send(ctx, mail.Message{
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
	}); err != nil {
		metrics.EmailsDelivered.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "Failed to deliver report email",
			applog.FieldRecipient, msg.Recipient,
			applog.FieldOwnerID, msg.OwnerID,
			applog.FieldError, err)
		return fmt.Errorf("deliver report email: %w", err)
	}

	metrics.EmailsDelivered.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "Report email delivered",
		applog.FieldRecipient, msg.Recipient,
		applog.FieldOwnerID, msg.OwnerID)

	return nil
}
