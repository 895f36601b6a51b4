package etl

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BartekS5/paysync/pkg/models"
	"github.com/BartekS5/paysync/pkg/utils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const chargeSpecJSON = `{
	"name": "Charge",
	"kind": "charges",
	"schema": [
		{"name": "id", "type": "STRING"},
		{"name": "amount", "type": "INTEGER"},
		{"name": "billing_details", "type": "RECORD", "fields": [
			{"name": "address", "type": "RECORD", "fields": [
				{"name": "city", "type": "STRING"},
				{"name": "country", "type": "STRING"}
			]},
			{"name": "email", "type": "STRING"}
		]},
		{"name": "paid", "type": "BOOLEAN"},
		{"name": "created", "type": "TIMESTAMP"},
		{"name": "dispute", "type": "STRING"}
	]
}`

const customerSpecJSON = `{
	"name": "Customer",
	"kind": "customers",
	"schema": [
		{"name": "id", "type": "STRING"},
		{"name": "created", "type": "TIMESTAMP"},
		{"name": "email", "type": "STRING"},
		{"name": "metadata", "type": "RECORD", "fields": [
			{"name": "city", "type": "STRING"}
		]}
	]
}`

func testResource(t *testing.T, specJSON string) *models.Resource {
	t.Helper()
	spec, err := models.ParseResourceSpec([]byte(specJSON))
	require.NoError(t, err)
	return &models.Resource{ResourceSpec: *spec, Transform: Projector(spec.Schema)}
}

type mapRegistry map[string]*models.Resource

func (r mapRegistry) Lookup(name string) (*models.Resource, error) {
	res, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return res, nil
}

func testRegistry(t *testing.T) mapRegistry {
	charge := testResource(t, chargeSpecJSON)
	customer := testResource(t, customerSpecJSON)
	return mapRegistry{charge.Name: charge, customer.Name: customer}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeSource serves in-memory records per kind, filtered by created.
type fakeSource struct {
	mu       sync.Mutex
	records  map[string][]models.RawRecord
	requests []ListRequest
	err      error
}

func newFakeSource() *fakeSource {
	return &fakeSource{records: map[string][]models.RawRecord{}}
}

func (f *fakeSource) add(kind string, recs ...models.RawRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[kind] = append(f.records[kind], recs...)
}

func (f *fakeSource) List(ctx context.Context, req ListRequest) RecordIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return &sliceIterator{err: f.err}
	}
	var out []models.RawRecord
	for _, r := range f.records[req.Kind] {
		created, err := utils.ConvertToInt64(r["created"])
		if err != nil {
			continue
		}
		if created >= req.CreatedGTE && created <= req.CreatedLTE {
			out = append(out, r)
		}
	}
	return &sliceIterator{records: out}
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type mockWarehouse struct {
	mock.Mock
}

func (m *mockWarehouse) MaxTimestamp(ctx context.Context, table, column string) (time.Time, bool, error) {
	args := m.Called(table, column)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *mockWarehouse) AppendRows(ctx context.Context, table string, schema models.Schema, rows []models.Record) (int64, error) {
	args := m.Called(table, rows)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockWarehouse) ReplaceDeduplicated(ctx context.Context, spec MergeSpec) error {
	return m.Called(spec).Error(0)
}

func (m *mockWarehouse) Close() error { return nil }

func charge(id string, amount int64, created time.Time) models.RawRecord {
	return models.RawRecord{
		"id":      id,
		"object":  "charge",
		"amount":  amount,
		"created": created.Unix(),
		"paid":    true,
		"billing_details": map[string]any{
			"address": map[string]any{"city": "Warsaw", "country": "PL"},
			"email":   id + "@example.com",
		},
		"dispute": nil,
	}
}
