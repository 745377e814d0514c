package core

import "fmt"

// BucketKey maps a date to the string key of the time bucket containing it
// under the given granularity. Two dates share a key iff they fall in the
// same bucket. Unknown granularities degrade to monthly keys.
func BucketKey(d Date, g Granularity) string {
	switch g {
	case Daily:
		return d.Format("2006-01-02")
	case Weekly:
		// Key is the Monday on or before the date.
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset).Format("2006-01-02")
	case Quarterly:
		quarter := (int(d.Month()) + 2) / 3
		return fmt.Sprintf("%d-Q%d", d.Year(), quarter)
	case Yearly:
		return d.Format("2006")
	default:
		return d.Format("2006-01")
	}
}
