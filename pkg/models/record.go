package models

import "time"

// RawRecord is a record as returned by the upstream API.
type RawRecord map[string]any

// Record is a schema-conformant row ready for the warehouse.
type Record map[string]any

// TimeWindow is the creation-time range of one extraction.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// TimestampLayout is how window bounds are rendered in run summaries.
const TimestampLayout = "2006-01-02T15:04:05Z"

// RunSummary is the outcome of one pipeline run.
type RunSummary struct {
	Table        string `json:"table"`
	Start        string `json:"start"`
	End          string `json:"end"`
	NumProcessed int    `json:"num_processed"`
	OutputRows   *int64 `json:"output_rows,omitempty"`
}

// NewRunSummary builds a summary for the given window with nothing loaded.
func NewRunSummary(table string, w TimeWindow, fetched int) *RunSummary {
	return &RunSummary{
		Table:        table,
		Start:        w.Start.UTC().Format(TimestampLayout),
		End:          w.End.UTC().Format(TimestampLayout),
		NumProcessed: fetched,
	}
}
