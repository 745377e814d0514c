package core

import "github.com/shopspring/decimal"

// TripSummary is the trip-scoped aggregate plus duration and average daily
// spend. Trip summaries have no bucket sums; instead ByBucket groups the
// filtered expense records when a non-daily granularity is requested, and
// Expenses holds the raw filtered list when granularity is daily.
type TripSummary struct {
	TripID       string                     `json:"tripId"`
	Name         string                     `json:"name"`
	StartDate    string                     `json:"startDate"`
	EndDate      string                     `json:"endDate,omitempty"`
	DurationDays int64                      `json:"durationDays"`
	Total        decimal.Decimal            `json:"total"`
	ByType       TypeTotals                 `json:"byType"`
	ByNeedOrWant NeedWantTotals             `json:"byNeedOrWant"`
	ByCategory   map[string]decimal.Decimal `json:"byCategory"`
	AverageDaily decimal.Decimal            `json:"averageDailyExpense"`
	ByBucket     map[string][]Entry         `json:"byBucket,omitempty"`
	Expenses     []Entry                    `json:"expenses,omitempty"`
}

// TripDuration is the whole-day count between start and end (or now when the
// trip is still open), inclusive. Never less than 1, even for same-day or
// inverted ranges.
func TripDuration(t Trip, now Date) int64 {
	end := t.EndDate
	if end.IsZero() {
		end = now
	}
	days := int64(DateOf(end.Time).Sub(DateOf(t.StartDate.Time).Time).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// RollupTrip aggregates a trip's expenses, optionally restricted to a date
// range. The second return value is false when a range is active and no
// expense falls inside it: filtered rollups omit such trips rather than
// returning a zero-filled record. Without a filter every trip produces a
// summary, trips with no expenses included.
func RollupTrip(t Trip, expenses []Entry, r *DateRange, g Granularity, now Date) (TripSummary, bool) {
	filtered := FilterEntries(expenses, r)
	if r != nil && len(filtered) == 0 {
		return TripSummary{}, false
	}

	agg := Summarize(filtered, SummaryOptions{Granularity: g, NeedWant: true})
	duration := TripDuration(t, now)

	summary := TripSummary{
		TripID:       t.ID,
		Name:         t.Name,
		StartDate:    t.StartDate.String(),
		DurationDays: duration,
		Total:        agg.Total,
		ByType:       agg.ByType,
		ByNeedOrWant: *agg.ByNeedOrWant,
		ByCategory:   agg.ByCategory,
		AverageDaily: agg.Total.Div(decimal.NewFromInt(duration)).Round(2),
	}
	if !t.EndDate.IsZero() {
		summary.EndDate = t.EndDate.String()
	}

	if g == Daily {
		summary.Expenses = filtered
	} else {
		buckets := make(map[string][]Entry)
		for _, e := range filtered {
			key := BucketKey(e.Date, g)
			buckets[key] = append(buckets[key], e)
		}
		summary.ByBucket = buckets
	}

	return summary, true
}
