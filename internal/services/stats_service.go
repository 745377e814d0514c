package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
)

// EntryStorage supplies already-joined transaction rows for aggregation.
type EntryStorage interface {
	ListEntries(ctx context.Context, ownerID string, dir core.Direction, dateRange *core.DateRange) ([]core.Entry, error)
}

// ReportStorage persists report snapshots.
type ReportStorage interface {
	CreateReport(ctx context.Context, rep *core.Report) error
}

// StatsService computes aggregate summaries over a user's transactions. The
// service fetches and joins; the fold itself lives in core and never touches
// storage.
type StatsService struct {
	entries EntryStorage
	reports ReportStorage
}

func NewStatsService(entries EntryStorage, reports ReportStorage) *StatsService {
	return &StatsService{entries: entries, reports: reports}
}

// Summary aggregates the owner's transactions of one direction, optionally
// restricted to a date range. Unknown granularities have already been
// degraded to monthly by the boundary. Expense summaries carry the need/want
// axis; income summaries do not.
func (s *StatsService) Summary(ctx context.Context, ownerID string, dir core.Direction, dateRange *core.DateRange, g core.Granularity) (core.Aggregate, error) {
	entries, err := s.entries.ListEntries(ctx, ownerID, dir, dateRange)
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("list entries: %w", err)
	}

	agg := core.Summarize(entries, core.SummaryOptions{
		Granularity: g,
		NeedWant:    dir == core.Expense,
	})
	metrics.AggregationsComputed.WithLabelValues(string(dir)).Inc()

	slog.DebugContext(ctx, "Summary computed",
		applog.FieldOwnerID, ownerID,
		"direction", dir,
		"entries", len(entries),
		"total", agg.Total.String())
	return agg, nil
}

// SaveReport computes an expense aggregate for the period and persists it as
// a named snapshot.
func (s *StatsService) SaveReport(ctx context.Context, ownerID, name string, dateRange core.DateRange, g core.Granularity) (*core.Report, error) {
	agg, err := s.Summary(ctx, ownerID, core.Expense, &dateRange, g)
	if err != nil {
		return nil, err
	}

	rep := &core.Report{
		OwnerID:     ownerID,
		Name:        name,
		PeriodStart: dateRange.Start,
		PeriodEnd:   dateRange.End,
		Granularity: g,
		Aggregate:   agg,
	}
	if err := s.reports.CreateReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	slog.InfoContext(ctx, "Report snapshot saved",
		applog.FieldOwnerID, ownerID,
		"report_id", rep.ID,
		"name", name)
	return rep, nil
}
