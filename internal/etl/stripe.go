package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Upstream list kinds served by StripeSource.
const (
	KindCharges             = "charges"
	KindCustomers           = "customers"
	KindBalanceTransactions = "balance_transactions"
)

// StripeSource lists records from the Stripe API.
type StripeSource struct {
	API *client.API
}

func NewStripeSource(api *client.API) *StripeSource {
	return &StripeSource{API: api}
}

// NewStripeAPI builds a client whose SDK logs go to pkg/logger. An empty
// baseURL keeps the SDK default (api.stripe.com).
func NewStripeAPI(key, baseURL string, maxRetries int64) *client.API {
	cfg := &stripe.BackendConfig{
		LeveledLogger:     logger.Leveled{},
		MaxNetworkRetries: stripe.Int64(maxRetries),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return client.New(key, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	})
}

// List pages through every record of req.Kind created within the range.
func (s *StripeSource) List(ctx context.Context, req ListRequest) RecordIterator {
	created := &stripe.RangeQueryParams{
		GreaterThanOrEqual: req.CreatedGTE,
		LesserThanOrEqual:  req.CreatedLTE,
	}

	switch req.Kind {
	case KindCharges:
		params := &stripe.ChargeListParams{CreatedRange: created}
		params.Context = ctx
		params.Limit = stripe.Int64(req.Limit)
		for _, e := range req.Expand {
			params.AddExpand(e)
		}
		it := s.API.Charges.List(params)
		return newPageIterator(it.Iter, func(l stripe.ListContainer) *stripe.APIResponse {
			return l.(*stripe.ChargeList).LastResponse
		})
	case KindCustomers:
		params := &stripe.CustomerListParams{CreatedRange: created}
		params.Context = ctx
		params.Limit = stripe.Int64(req.Limit)
		for _, e := range req.Expand {
			params.AddExpand(e)
		}
		it := s.API.Customers.List(params)
		return newPageIterator(it.Iter, func(l stripe.ListContainer) *stripe.APIResponse {
			return l.(*stripe.CustomerList).LastResponse
		})
	case KindBalanceTransactions:
		params := &stripe.BalanceTransactionListParams{CreatedRange: created}
		params.Context = ctx
		params.Limit = stripe.Int64(req.Limit)
		for _, e := range req.Expand {
			params.AddExpand(e)
		}
		it := s.API.BalanceTransactions.List(params)
		return newPageIterator(it.Iter, func(l stripe.ListContainer) *stripe.APIResponse {
			return l.(*stripe.BalanceTransactionList).LastResponse
		})
	}
	return errIterator("%w: no upstream listing for kind %q", ErrUnknownResource, req.Kind)
}

// pageIterator yields records decoded from the raw JSON of each page so
// that unexpanded references stay plain IDs, the way the API sends them.
type pageIterator struct {
	it       *stripe.Iter
	response func(stripe.ListContainer) *stripe.APIResponse
	page     stripe.ListContainer
	buf      []models.RawRecord
	cur      models.RawRecord
	err      error
}

func newPageIterator(it *stripe.Iter, response func(stripe.ListContainer) *stripe.APIResponse) *pageIterator {
	return &pageIterator{it: it, response: response}
}

func (p *pageIterator) Next() bool {
	if p.err != nil || !p.it.Next() {
		return false
	}
	if list := p.it.List(); list != p.page {
		p.page = list
		p.buf, p.err = p.decodePage(list)
		if p.err != nil {
			return false
		}
	}
	if len(p.buf) == 0 {
		p.err = fmt.Errorf("stripe page shorter than its item list")
		return false
	}
	p.cur = p.buf[0]
	p.buf = p.buf[1:]
	return true
}

func (p *pageIterator) Record() models.RawRecord { return p.cur }

func (p *pageIterator) Err() error {
	if p.err != nil {
		return p.err
	}
	return p.it.Err()
}

func (p *pageIterator) decodePage(list stripe.ListContainer) ([]models.RawRecord, error) {
	resp := p.response(list)
	if resp == nil || len(resp.RawJSON) == 0 {
		return nil, fmt.Errorf("stripe page has no raw response body")
	}
	var body struct {
		Data []models.RawRecord `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(resp.RawJSON))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode stripe page: %w", err)
	}
	return body.Data, nil
}
