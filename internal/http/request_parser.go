// Package http provides the JSON API server and its handlers.
package http

import (
	"errors"
	"net/url"
	"strings"

	"fintrack/internal/core"
)

var errUnknownGranularity = errors.New("unknown granularity")

// StatsQuery holds the parsed filter parameters of an aggregation request.
type StatsQuery struct {
	Direction   core.Direction
	Range       *core.DateRange
	Granularity core.Granularity
}

// ParseStatsQuery extracts direction, date range and granularity from query
// parameters. An unrecognized granularity falls back to monthly so dashboard
// links with stale values keep working.
func ParseStatsQuery(query url.Values) (StatsQuery, error) {
	q := StatsQuery{Direction: core.Expense, Granularity: core.Monthly}

	if v := strings.TrimSpace(query.Get("direction")); v != "" {
		switch core.Direction(v) {
		case core.Income, core.Expense:
			q.Direction = core.Direction(v)
		default:
			return q, core.ErrInvalidDirection
		}
	}

	if v := strings.TrimSpace(query.Get("granularity")); v != "" {
		q.Granularity, _ = core.ParseGranularity(v)
	}

	r, err := parseRange(query)
	if err != nil {
		return q, err
	}
	q.Range = r

	return q, nil
}

// ParseRollupQuery is the strict variant used by trip rollups: an
// unrecognized granularity is rejected instead of silently degraded.
func ParseRollupQuery(query url.Values) (StatsQuery, error) {
	q := StatsQuery{Granularity: core.Monthly}

	if v := strings.TrimSpace(query.Get("granularity")); v != "" {
		g, ok := core.ParseGranularity(v)
		if !ok {
			return q, errUnknownGranularity
		}
		q.Granularity = g
	}

	r, err := parseRange(query)
	if err != nil {
		return q, err
	}
	q.Range = r

	return q, nil
}

// parseRange reads optional start/end parameters. Both must be present for a
// range to apply.
func parseRange(query url.Values) (*core.DateRange, error) {
	startStr := strings.TrimSpace(query.Get("start"))
	endStr := strings.TrimSpace(query.Get("end"))
	if startStr == "" && endStr == "" {
		return nil, nil
	}
	if startStr == "" || endStr == "" {
		return nil, core.ErrInvalidDate
	}

	start, err := core.ParseDate(startStr)
	if err != nil {
		return nil, err
	}
	end, err := core.ParseDate(endStr)
	if err != nil {
		return nil, err
	}

	r := &core.DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
