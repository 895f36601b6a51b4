package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/BartekS5/paysync/pkg/utils"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQueryWarehouse loads into tables of one BigQuery dataset.
type BigQueryWarehouse struct {
	Client  *bigquery.Client
	Dataset string
}

func NewBigQueryWarehouse(client *bigquery.Client, dataset string) *BigQueryWarehouse {
	return &BigQueryWarehouse{Client: client, Dataset: dataset}
}

func (b *BigQueryWarehouse) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", b.Client.Project(), b.Dataset, table)
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func (b *BigQueryWarehouse) MaxTimestamp(ctx context.Context, table, column string) (time.Time, bool, error) {
	it, err := b.Client.Query(maxTimestampQuery(b.tableRef(table), column)).Read(ctx)
	if isNotFound(err) {
		return time.Time{}, false, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return time.Time{}, false, err
	}

	var row []bigquery.Value
	err = it.Next(&row)
	if err == iterator.Done || (err == nil && (len(row) == 0 || row[0] == nil)) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := utils.ConvertDateTime(row[0])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("max %s.%s: %w", table, column, err)
	}
	return ts, true, nil
}

func maxTimestampQuery(ref, column string) string {
	return fmt.Sprintf("SELECT MAX(`%s`) AS max_ts FROM %s", column, ref)
}

// AppendRows runs a load job with the rows as newline-delimited JSON and
// returns the output row count the job reports.
func (b *BigQueryWarehouse) AppendRows(ctx context.Context, table string, schema models.Schema, rows []models.Record) (int64, error) {
	body, err := encodeNDJSON(rows)
	if err != nil {
		return 0, err
	}
	src := bigquery.NewReaderSource(bytes.NewReader(body))
	src.SourceFormat = bigquery.JSON
	src.Schema = bigQuerySchema(schema)

	loader := b.Client.Dataset(b.Dataset).Table(table).LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("start load into %s: %w", table, err)
	}
	logger.Debugf("BigQuery load job %s started for %s", job.ID(), table)
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, err
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("load into %s: %w", table, err)
	}
	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		return stats.OutputRows, nil
	}
	return int64(len(rows)), nil
}

func encodeNDJSON(rows []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encode row: %w", err)
		}
	}
	return buf.Bytes(), nil
}

var bigQueryTypes = map[models.FieldType]bigquery.FieldType{
	models.TypeString:    bigquery.StringFieldType,
	models.TypeInteger:   bigquery.IntegerFieldType,
	models.TypeFloat:     bigquery.FloatFieldType,
	models.TypeBoolean:   bigquery.BooleanFieldType,
	models.TypeTimestamp: bigquery.TimestampFieldType,
	models.TypeRecord:    bigquery.RecordFieldType,
}

func bigQuerySchema(fields []models.Field) bigquery.Schema {
	out := make(bigquery.Schema, len(fields))
	for i, f := range fields {
		fs := &bigquery.FieldSchema{Name: f.Name, Type: bigQueryTypes[f.Type]}
		if f.Type == models.TypeRecord {
			fs.Schema = bigQuerySchema(f.Fields)
		}
		out[i] = fs
	}
	return out
}

func (b *BigQueryWarehouse) ReplaceDeduplicated(ctx context.Context, m MergeSpec) error {
	script := mergeScript(b.tableRef(m.Table), b.tableRef(m.Staging), m)
	job, err := b.Client.Query(script).Run(ctx)
	if err != nil {
		return fmt.Errorf("start merge into %s: %w", m.Table, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("merge into %s: %w", m.Table, err)
	}
	return nil
}

// mergeScript rebuilds the target from staging ∪ target keeping one row
// per identity key, then truncates staging. Staged rows win; rows of one
// side that tie on OrderBy are settled by their full JSON form.
func mergeScript(target, staging string, m MergeSpec) string {
	keys := make([]string, len(m.IdentityKey))
	for i, k := range m.IdentityKey {
		keys[i] = "`" + k + "`"
	}
	order := "_src ASC"
	if m.OrderBy != "" {
		order += ", `" + m.OrderBy + "` DESC"
	}
	// STRUCT columns cannot be ordered; the row's JSON form can.
	order += ", TO_JSON_STRING(u) DESC"

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s LIKE %s;\n", target, staging)
	fmt.Fprintf(&sb, "CREATE OR REPLACE TABLE %s AS\n", target)
	sb.WriteString("SELECT * EXCEPT(_src, _row_num) FROM (\n")
	fmt.Fprintf(&sb, "  SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS _row_num\n", strings.Join(keys, ", "), order)
	fmt.Fprintf(&sb, "  FROM (SELECT *, 0 AS _src FROM %s UNION ALL SELECT *, 1 AS _src FROM %s) AS u\n", staging, target)
	sb.WriteString(") WHERE _row_num = 1;\n")
	fmt.Fprintf(&sb, "TRUNCATE TABLE %s;\n", staging)
	return sb.String()
}

func (b *BigQueryWarehouse) Close() error {
	return b.Client.Close()
}
