package models

import "time"

// RunSummary is returned to the caller of a sync run. It is not persisted as
// its own entity; it is derivable from the run's sync records and logs.
type RunSummary struct {
	ConnectorID         int64
	CorrelationID       string
	Imported            int
	Updated             int
	ConflictsPreserved  int
	ConflictsOverridden int
	Rejected            int
	Failed              int
	TotalFetched        int
	StartedAt           time.Time
	FinishedAt          time.Time
	Cancelled           bool
	Success             bool
	Message             string
}

// Processed is the number of records that reached a terminal outcome.
func (s *RunSummary) Processed() int {
	return s.Imported + s.Updated + s.ConflictsPreserved + s.ConflictsOverridden + s.Rejected + s.Failed
}
