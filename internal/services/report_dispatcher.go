package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
)

// DispatchStorage is the storage surface the report dispatcher needs.
type DispatchStorage interface {
	EntryStorage
	ListUsers(ctx context.Context) ([]core.User, error)
}

// EmailPublisher hands a rendered report email to the delivery pipeline.
type EmailPublisher interface {
	PublishReportEmail(ctx context.Context, msg *amqp.ReportEmailMessage) error
}

// DispatchResult reports the outcome of one user's report dispatch. Sent is
// false both when delivery failed (Err set) and when there was nothing to
// send (Err nil, zero total).
type DispatchResult struct {
	OwnerID   string
	Recipient string
	Sent      bool
	Err       error
}

// ReportDispatcher computes periodic expense summaries and hands them to the
// delivery collaborator.
type ReportDispatcher struct {
	storage   DispatchStorage
	publisher EmailPublisher
}

func NewReportDispatcher(storage DispatchStorage, publisher EmailPublisher) *ReportDispatcher {
	return &ReportDispatcher{storage: storage, publisher: publisher}
}

// Dispatch computes the user's expense aggregate for the period and, when
// the total is nonzero, publishes a rendered email. A zero total produces no
// delivery and the result says so.
func (d *ReportDispatcher) Dispatch(ctx context.Context, user core.User, dateRange core.DateRange, g core.Granularity) DispatchResult {
	result := DispatchResult{OwnerID: user.ID, Recipient: user.Email}

	entries, err := d.storage.ListEntries(ctx, user.ID, core.Expense, &dateRange)
	if err != nil {
		result.Err = fmt.Errorf("list entries: %w", err)
		metrics.ReportsDispatched.WithLabelValues("failed").Inc()
		return result
	}

	agg := core.Summarize(entries, core.SummaryOptions{Granularity: g, NeedWant: true})
	metrics.AggregationsComputed.WithLabelValues(string(core.Expense)).Inc()

	if agg.Total.IsZero() {
		slog.InfoContext(ctx, "No expenses in period, skipping report",
			applog.FieldOwnerID, user.ID,
			"period_start", dateRange.Start.String(),
			"period_end", dateRange.End.String())
		metrics.ReportsDispatched.WithLabelValues("skipped").Inc()
		return result
	}

	body, err := renderReportBody(user, dateRange, agg)
	if err != nil {
		result.Err = fmt.Errorf("render report: %w", err)
		metrics.ReportsDispatched.WithLabelValues("failed").Inc()
		return result
	}

	if d.publisher == nil {
		result.Err = fmt.Errorf("report delivery unavailable: no publisher configured")
		metrics.ReportsDispatched.WithLabelValues("failed").Inc()
		return result
	}

	subject := fmt.Sprintf("Expense summary %s to %s", dateRange.Start, dateRange.End)
	msg := amqp.NewReportEmailMessage(user.ID, user.Email, subject, body)
	if err := d.publisher.PublishReportEmail(ctx, msg); err != nil {
		result.Err = fmt.Errorf("publish report email: %w", err)
		metrics.ReportsDispatched.WithLabelValues("failed").Inc()
		return result
	}

	result.Sent = true
	metrics.ReportsDispatched.WithLabelValues("sent").Inc()
	return result
}

// DispatchAll runs Dispatch for every registered user. Users are independent
// units of work: they run concurrently and one user's failure never aborts
// the others. The caller gets one result per user.
func (d *ReportDispatcher) DispatchAll(ctx context.Context, dateRange core.DateRange, g core.Granularity) ([]DispatchResult, error) {
	users, err := d.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	results := make([]DispatchResult, len(users))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(4)

	for i, user := range users {
		group.Go(func() error {
			results[i] = d.Dispatch(ctx, user, dateRange, g)
			if results[i].Err != nil {
				slog.ErrorContext(ctx, "Report dispatch failed",
					applog.FieldOwnerID, user.ID,
					applog.FieldError, results[i].Err)
			}
			// Failures are carried in the result, never returned:
			// returning an error here would cancel sibling dispatches.
			return nil
		})
	}

	group.Wait()

	sent := 0
	for _, r := range results {
		if r.Sent {
			sent++
		}
	}
	slog.InfoContext(ctx, "Batch report dispatch finished",
		"users", len(users),
		"sent", sent)
	return results, nil
}
