package core

import (
	"encoding/json"
	"time"
)

// Report is a persisted snapshot of an Aggregate. It freezes the numbers at
// creation time; storage treats the aggregate as an opaque blob.
type Report struct {
	ID          string
	OwnerID     string
	Name        string
	PeriodStart Date
	PeriodEnd   Date
	Granularity Granularity
	Aggregate   Aggregate
	CreatedAt   time.Time
}

// MarshalSnapshot serializes the aggregate for persistence.
func (a *Aggregate) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalSnapshot restores a persisted aggregate.
func (a *Aggregate) UnmarshalSnapshot(data []byte) error {
	return json.Unmarshal(data, a)
}
