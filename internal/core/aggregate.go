package core

import "github.com/shopspring/decimal"

type (
	// TypeTotals partitions a total between fixed and variable costs.
	TypeTotals struct {
		Fixed    decimal.Decimal `json:"fixed"`
		Variable decimal.Decimal `json:"variable"`
	}

	// NeedWantTotals partitions an expense total between needs and wants.
	NeedWantTotals struct {
		Need decimal.Decimal `json:"need"`
		Want decimal.Decimal `json:"want"`
	}

	// Aggregate is the multi-axis summary of a transaction set. Every axis
	// partitions the same Total: the sums of ByType, ByBucket and (absent
	// orphaned categories) ByCategory all equal Total.
	Aggregate struct {
		Total        decimal.Decimal            `json:"total"`
		ByType       TypeTotals                 `json:"byType"`
		ByNeedOrWant *NeedWantTotals            `json:"byNeedOrWant,omitempty"`
		ByBucket     map[string]decimal.Decimal `json:"byBucket"`
		ByCategory   map[string]decimal.Decimal `json:"byCategory"`
	}

	// SummaryOptions control the aggregation fold. A nil Range keeps every
	// entry. NeedWant enables the need/want axis, which only expense
	// aggregates carry.
	SummaryOptions struct {
		Range       *DateRange
		Granularity Granularity
		NeedWant    bool
	}
)

// Summarize folds the already-fetched, already-joined entries into an
// Aggregate. It never fetches data and never mutates its input; an empty
// input yields a zero aggregate. Entries whose category name is empty
// (orphaned references) contribute to every axis except ByCategory.
func Summarize(entries []Entry, opts SummaryOptions) Aggregate {
	agg := Aggregate{
		ByBucket:   make(map[string]decimal.Decimal),
		ByCategory: make(map[string]decimal.Decimal),
	}
	if opts.NeedWant {
		agg.ByNeedOrWant = &NeedWantTotals{}
	}

	for _, e := range entries {
		if opts.Range != nil && !opts.Range.Contains(e.Date) {
			continue
		}

		agg.Total = agg.Total.Add(e.Amount)

		switch e.Kind {
		case Variable:
			agg.ByType.Variable = agg.ByType.Variable.Add(e.Amount)
		default:
			agg.ByType.Fixed = agg.ByType.Fixed.Add(e.Amount)
		}

		if agg.ByNeedOrWant != nil {
			switch e.NeedOrWant {
			case Want:
				agg.ByNeedOrWant.Want = agg.ByNeedOrWant.Want.Add(e.Amount)
			default:
				agg.ByNeedOrWant.Need = agg.ByNeedOrWant.Need.Add(e.Amount)
			}
		}

		key := BucketKey(e.Date, opts.Granularity)
		agg.ByBucket[key] = agg.ByBucket[key].Add(e.Amount)

		if e.Category != "" {
			agg.ByCategory[e.Category] = agg.ByCategory[e.Category].Add(e.Amount)
		}
	}

	return agg
}

// FilterEntries returns the entries falling inside the range, both ends
// inclusive. A nil range keeps everything.
func FilterEntries(entries []Entry, r *DateRange) []Entry {
	if r == nil {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}
