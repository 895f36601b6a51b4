package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/BartekS5/paysync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBuildsRequestAndDrains(t *testing.T) {
	src := newFakeSource()
	src.add(KindCharges,
		charge("ch_1", 100, date(2021, 7, 1)),
		charge("ch_2", 200, date(2021, 7, 2)),
		charge("ch_3", 300, date(2021, 7, 3)),
	)
	res := testResource(t, chargeSpecJSON)
	res.Expand = []string{"data.customer"}

	w := models.TimeWindow{Start: date(2021, 7, 1), End: date(2021, 7, 2)}
	raws, err := NewExtractor(src).Fetch(context.Background(), res, w)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "ch_1", raws[0]["id"])
	assert.Equal(t, "ch_2", raws[1]["id"])

	require.Len(t, src.requests, 1)
	assert.Equal(t, ListRequest{
		Kind:       KindCharges,
		CreatedGTE: date(2021, 7, 1).Unix(),
		CreatedLTE: date(2021, 7, 2).Unix(),
		Limit:      PageSize,
		Expand:     []string{"data.customer"},
	}, src.requests[0])
}

func TestFetchEmptyWindow(t *testing.T) {
	src := newFakeSource()
	w := models.TimeWindow{Start: date(2021, 7, 1), End: date(2021, 7, 1)}

	raws, err := NewExtractor(src).Fetch(context.Background(), testResource(t, chargeSpecJSON), w)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestFetchPropagatesSourceError(t *testing.T) {
	src := newFakeSource()
	boom := errors.New("rate limited")
	src.err = boom

	_, err := NewExtractor(src).Fetch(context.Background(), testResource(t, chargeSpecJSON), models.TimeWindow{})
	assert.ErrorIs(t, err, boom)
}

func TestFetchDefaultsPageSize(t *testing.T) {
	src := newFakeSource()
	ex := &Extractor{Source: src}

	_, err := ex.Fetch(context.Background(), testResource(t, chargeSpecJSON), models.TimeWindow{})
	require.NoError(t, err)
	assert.Equal(t, int64(PageSize), src.requests[0].Limit)
}
