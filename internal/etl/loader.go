package etl

import (
	"context"
	"fmt"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
)

// Loader appends records to the resource's staging table and merges the
// staging rows into the target table.
type Loader struct {
	Warehouse Warehouse
}

func NewLoader(wh Warehouse) *Loader {
	return &Loader{Warehouse: wh}
}

// LoadAndMerge returns the number of rows the warehouse wrote to staging.
// A failed merge leaves the staged rows in place; the next run merges them.
func (l *Loader) LoadAndMerge(ctx context.Context, res *models.Resource, records []models.Record) (int64, error) {
	if err := NewValidator(res.Schema).ValidateAll(records); err != nil {
		return 0, fmt.Errorf("%s: %w", res.Name, err)
	}

	staging := res.StagingTable()
	written, err := l.Warehouse.AppendRows(ctx, staging, res.Schema, records)
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", staging, err)
	}
	if written != int64(len(records)) {
		logger.Warnf("%s: warehouse wrote %d rows for %d records", staging, written, len(records))
	}

	merge := MergeSpec{
		Table:       res.Table,
		Staging:     staging,
		Schema:      res.Schema,
		IdentityKey: res.Keys.Primary,
		OrderBy:     res.Keys.Increment,
	}
	if err := l.Warehouse.ReplaceDeduplicated(ctx, merge); err != nil {
		return written, fmt.Errorf("merge %s into %s: %w", staging, res.Table, err)
	}
	return written, nil
}
