package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// TripStorage supplies trips and their joined expense rows.
type TripStorage interface {
	GetTrip(ctx context.Context, ownerID, id string) (*core.Trip, error)
	ListTrips(ctx context.Context, ownerID string) ([]core.Trip, error)
	ListTripEntries(ctx context.Context, ownerID, tripID string) ([]core.Entry, error)
}

// TripService composes trip rollups from storage and the core rollup logic.
type TripService struct {
	storage TripStorage
}

func NewTripService(storage TripStorage) *TripService {
	return &TripService{storage: storage}
}

// Rollup summarizes a single trip without a date filter, so the result is
// always present, zero totals included.
func (s *TripService) Rollup(ctx context.Context, ownerID, tripID string, g core.Granularity) (core.TripSummary, error) {
	trip, err := s.storage.GetTrip(ctx, ownerID, tripID)
	if err != nil {
		return core.TripSummary{}, fmt.Errorf("get trip: %w", err)
	}

	entries, err := s.storage.ListTripEntries(ctx, ownerID, tripID)
	if err != nil {
		return core.TripSummary{}, fmt.Errorf("list trip entries: %w", err)
	}

	summary, _ := core.RollupTrip(*trip, entries, nil, g, core.DateOf(time.Now()))
	return summary, nil
}

// Rollups summarizes every trip of the owner. With an active date range,
// trips whose expenses all fall outside it are omitted from the result.
func (s *TripService) Rollups(ctx context.Context, ownerID string, dateRange *core.DateRange, g core.Granularity) ([]core.TripSummary, error) {
	trips, err := s.storage.ListTrips(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}

	now := core.DateOf(time.Now())
	summaries := make([]core.TripSummary, 0, len(trips))
	for _, trip := range trips {
		entries, err := s.storage.ListTripEntries(ctx, ownerID, trip.ID)
		if err != nil {
			return nil, fmt.Errorf("list trip entries for %s: %w", trip.ID, err)
		}

		summary, ok := core.RollupTrip(trip, entries, dateRange, g, now)
		if !ok {
			continue
		}
		summaries = append(summaries, summary)
	}

	slog.DebugContext(ctx, "Trip rollups computed",
		applog.FieldOwnerID, ownerID,
		"trips", len(trips),
		"included", len(summaries))
	return summaries, nil
}
