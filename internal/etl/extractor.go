package etl

import (
	"context"
	"fmt"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
)

// Extractor pulls every record of a window from the upstream source.
type Extractor struct {
	Source   Source
	PageSize int64
}

func NewExtractor(src Source) *Extractor {
	return &Extractor{Source: src, PageSize: PageSize}
}

// Fetch drains all pages for the window and returns the records in
// upstream order. Upstream errors are returned as is.
func (e *Extractor) Fetch(ctx context.Context, res *models.Resource, w models.TimeWindow) ([]models.RawRecord, error) {
	limit := e.PageSize
	if limit <= 0 {
		limit = PageSize
	}
	req := ListRequest{
		Kind:       res.Kind,
		CreatedGTE: w.Start.Unix(),
		CreatedLTE: w.End.Unix(),
		Limit:      limit,
		Expand:     res.Expand,
	}

	it := e.Source.List(ctx, req)
	var records []models.RawRecord
	for it.Next() {
		records = append(records, it.Record())
		if len(records)%(10*int(limit)) == 0 {
			logger.Debugf("%s: fetched %d records so far", res.Name, len(records))
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// sliceIterator iterates an in-memory record list.
type sliceIterator struct {
	records []models.RawRecord
	cur     models.RawRecord
	err     error
}

func (s *sliceIterator) Next() bool {
	if s.err != nil || len(s.records) == 0 {
		return false
	}
	s.cur = s.records[0]
	s.records = s.records[1:]
	return true
}

func (s *sliceIterator) Record() models.RawRecord { return s.cur }
func (s *sliceIterator) Err() error               { return s.err }

func errIterator(format string, args ...any) RecordIterator {
	return &sliceIterator{err: fmt.Errorf(format, args...)}
}
