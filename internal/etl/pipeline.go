package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Request selects a resource and, optionally, an explicit date range.
// Either Table or Resource names the resource.
type Request struct {
	Table    string `json:"table" validate:"required_without=Resource"`
	Resource string `json:"resource" validate:"required_without=Table"`
	Start    string `json:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End      string `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Name returns the requested resource name.
func (r Request) Name() string {
	if r.Table != "" {
		return r.Table
	}
	return r.Resource
}

type Pipeline struct {
	Registry    Registry
	Resolver    *WindowResolver
	Extractor   *Extractor
	Transformer *Transformer
	Loader      *Loader
	DryRun      bool
}

// NewPipeline wires the stages around one source and one warehouse.
func NewPipeline(reg Registry, src Source, wh Warehouse, epoch time.Time, dryRun bool) *Pipeline {
	return &Pipeline{
		Registry:    reg,
		Resolver:    NewWindowResolver(wh, epoch),
		Extractor:   NewExtractor(src),
		Transformer: NewTransformer(),
		Loader:      NewLoader(wh),
		DryRun:      dryRun,
	}
}

// Run resolves the window, fetches, and when anything was fetched,
// transforms, loads and merges it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.RunSummary, error) {
	res, err := p.Registry.Lookup(req.Name())
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startTime := time.Now()

	window, err := p.Resolver.Resolve(ctx, res, req.Start, req.End)
	if err != nil {
		logger.Errorf("[%s] %s: window resolution failed: %v", runID, res.Name, err)
		return nil, err
	}
	logger.Infof("[%s] %s: window %s -> %s, DryRun: %v", runID, res.Name,
		window.Start.Format(models.TimestampLayout), window.End.Format(models.TimestampLayout), p.DryRun)

	raws, err := p.Extractor.Fetch(ctx, res, window)
	if err != nil {
		logger.Errorf("[%s] %s: extraction failed: %v", runID, res.Name, err)
		return nil, err
	}

	summary := models.NewRunSummary(res.Table, window, len(raws))
	if len(raws) == 0 {
		logger.Infof("[%s] %s: no records in window, nothing to load", runID, res.Name)
		return summary, nil
	}

	records := p.Transformer.Transform(res, raws)

	if p.DryRun {
		if err := NewValidator(res.Schema).ValidateAll(records); err != nil {
			return nil, fmt.Errorf("%s: %w", res.Name, err)
		}
		logger.Infof("[DRY RUN] [%s] Would load %d records into %s", runID, len(records), res.Table)
		return summary, nil
	}

	written, err := p.Loader.LoadAndMerge(ctx, res, records)
	if err != nil {
		logger.Errorf("[%s] %s: load failed: %v", runID, res.Name, err)
		return nil, err
	}
	summary.OutputRows = &written

	duration := time.Since(startTime)
	rate := 0.0
	if duration.Seconds() > 0 {
		rate = float64(len(raws)) / duration.Seconds()
	}
	logger.Infof("[%s] %s: done. Fetched: %d, Written: %d, Rate: %.2f records/sec", runID, res.Name, len(raws), written, rate)
	return summary, nil
}

// RunMany runs independent resources concurrently. All names are resolved
// before any run starts. Summaries are returned in request order; a failed
// run leaves a nil entry and does not stop the others. Errors are joined.
func (p *Pipeline) RunMany(ctx context.Context, reqs []Request) ([]*models.RunSummary, error) {
	for _, req := range reqs {
		if _, err := p.Registry.Lookup(req.Name()); err != nil {
			return nil, err
		}
	}

	results := make([]*models.RunSummary, len(reqs))
	errs := make([]error, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			results[i], errs[i] = p.Run(ctx, req)
			return nil
		})
	}
	g.Wait()
	return results, errors.Join(errs...)
}
