package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/BartekS5/paysync/pkg/utils"
)

// WindowResolver decides which creation-time range a run extracts.
type WindowResolver struct {
	Warehouse Warehouse
	// Epoch is the start used when nothing has been ingested yet.
	Epoch time.Time
	Now   func() time.Time
}

func NewWindowResolver(wh Warehouse, epoch time.Time) *WindowResolver {
	return &WindowResolver{Warehouse: wh, Epoch: epoch.UTC(), Now: time.Now}
}

// Resolve returns the explicit [start, end] range when both dates are set.
// Otherwise it resumes from the newest ingested row up to now. A single
// explicit bound is ignored and the run falls back to auto mode.
func (w *WindowResolver) Resolve(ctx context.Context, res *models.Resource, start, end string) (models.TimeWindow, error) {
	if start != "" && end != "" {
		return explicitWindow(start, end)
	}
	if start != "" || end != "" {
		logger.Warnf("%s: only one of start/end given (start=%q end=%q), resolving window automatically", res.Name, start, end)
	}

	now := w.Now().UTC().Truncate(time.Second)
	from, err := w.lastIngested(ctx, res)
	if err != nil {
		return models.TimeWindow{}, err
	}
	if from.After(now) {
		from = now
	}
	return models.TimeWindow{Start: from, End: now}, nil
}

func (w *WindowResolver) lastIngested(ctx context.Context, res *models.Resource) (time.Time, error) {
	ts, found, err := w.Warehouse.MaxTimestamp(ctx, res.Table, res.Keys.Increment)
	switch {
	case errors.Is(err, ErrTableNotFound):
		logger.Infof("%s: table %s does not exist yet, starting from %s", res.Name, res.Table, w.Epoch.Format(models.TimestampLayout))
		return w.Epoch, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("resolve window for %s: %w", res.Name, err)
	case !found:
		logger.Infof("%s: table %s is empty, starting from %s", res.Name, res.Table, w.Epoch.Format(models.TimestampLayout))
		return w.Epoch, nil
	}
	return ts.UTC().Truncate(time.Second), nil
}

func explicitWindow(start, end string) (models.TimeWindow, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("%w: start: %v", ErrInvalidWindow, err)
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("%w: end: %v", ErrInvalidWindow, err)
	}
	if s.After(e) {
		return models.TimeWindow{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow, start, end)
	}
	return models.TimeWindow{Start: s, End: e}, nil
}
