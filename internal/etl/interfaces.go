package etl

import (
	"context"
	"time"

	"github.com/BartekS5/paysync/pkg/models"
)

// PageSize is the number of records requested per upstream page.
const PageSize = 100

// ListRequest asks the upstream for every record of Kind created within
// [CreatedGTE, CreatedLTE], in unix seconds.
type ListRequest struct {
	Kind       string
	CreatedGTE int64
	CreatedLTE int64
	Limit      int64
	Expand     []string
}

// RecordIterator walks a paginated upstream listing, fetching pages as
// needed.
type RecordIterator interface {
	Next() bool
	Record() models.RawRecord
	Err() error
}

// Source is the upstream record API.
type Source interface {
	List(ctx context.Context, req ListRequest) RecordIterator
}

// MergeSpec describes one dedup-and-replace of a target table.
type MergeSpec struct {
	Table       string
	Staging     string
	Schema      models.Schema
	IdentityKey []string
	// OrderBy breaks ties between rows of the same side, descending.
	OrderBy string
}

// tieBreakColumns are the remaining columns, compared descending after
// OrderBy so that rows equal on OrderBy still merge the same way every time.
func (m MergeSpec) tieBreakColumns() []string {
	skip := make(map[string]bool, len(m.IdentityKey)+1)
	for _, k := range m.IdentityKey {
		skip[k] = true
	}
	skip[m.OrderBy] = true

	var cols []string
	for _, name := range m.Schema.Names() {
		if !skip[name] {
			cols = append(cols, name)
		}
	}
	return cols
}

// Warehouse is the analytical store rows are loaded into.
type Warehouse interface {
	// MaxTimestamp returns the greatest value of column in table. found is
	// false when the table has no rows. A missing table yields
	// ErrTableNotFound.
	MaxTimestamp(ctx context.Context, table, column string) (ts time.Time, found bool, err error)
	// AppendRows creates table if needed and appends rows to it, returning
	// the number of rows the warehouse reports as written.
	AppendRows(ctx context.Context, table string, schema models.Schema, rows []models.Record) (int64, error)
	// ReplaceDeduplicated atomically replaces the target with the union of
	// target and staging rows, one row per identity key, then empties the
	// staging table.
	ReplaceDeduplicated(ctx context.Context, m MergeSpec) error
	Close() error
}

// Registry resolves resource names to descriptors.
type Registry interface {
	Lookup(name string) (*models.Resource, error)
}
