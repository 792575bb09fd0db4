package domain

import "time"

// Snapshot is the result of one collection run, handed to every loader.
type Snapshot struct {
	RunID       string
	CollectedAt time.Time
	Range       DateRange
	Matrix      *Matrix
	Sets        []ObservationSet
}
