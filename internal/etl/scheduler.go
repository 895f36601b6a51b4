package etl

import (
	"context"
	"fmt"
	"sync"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/robfig/cron/v3"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req Request) (*models.RunSummary, error)
}

// Scheduler triggers auto-incremental runs on cron schedules. A tick is
// skipped while the previous run of the same table is still going.
type Scheduler struct {
	cron     *cron.Cron
	registry Registry
	runner   Runner

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(reg Registry, runner Runner) *Scheduler {
	logger.Init()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.PrintfLogger(logger.InfoLog))),
		registry: reg,
		runner:   runner,
		locks:    make(map[string]*sync.Mutex),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add schedules every table on spec (standard five-field cron syntax).
// Unknown tables are rejected before anything is scheduled.
func (s *Scheduler) Add(spec string, tables ...string) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to schedule")
	}
	for _, t := range tables {
		if _, err := s.registry.Lookup(t); err != nil {
			return err
		}
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	for _, t := range tables {
		if _, err := s.cron.AddFunc(spec, func() { s.runTable(t) }); err != nil {
			return err
		}
		logger.Infof("Scheduled %s on %q", t, spec)
	}
	return nil
}

func (s *Scheduler) lockFor(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[table]
	if !ok {
		l = &sync.Mutex{}
		s.locks[table] = l
	}
	return l
}

// runTable reports whether the run happened.
func (s *Scheduler) runTable(table string) bool {
	lock := s.lockFor(table)
	if !lock.TryLock() {
		logger.Warnf("%s: previous run still in progress, skipping tick", table)
		return false
	}
	defer lock.Unlock()

	summary, err := s.runner.Run(s.ctx, Request{Table: table})
	if err != nil {
		logger.Errorf("%s: scheduled run failed: %v", table, err)
		return true
	}
	logger.Infof("%s: scheduled run processed %d records (%s -> %s)", table, summary.NumProcessed, summary.Start, summary.End)
	return true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs. If ctx ends first the
// running jobs are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
