package domain

import "time"

// IngestStats holds statistics about one batch of processed updates.
type IngestStats struct {
	Fetched  int
	New      int
	Updated  int
	Skipped  int
	Rejected int
	Errors   int
	Duration time.Duration
}
