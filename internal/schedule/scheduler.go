// Package schedule runs housekeeping jobs on cron specs.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

type Option func(*CronScheduler)

// WithJobTimeout bounds every single run of a job.
func WithJobTimeout(d time.Duration) Option {
	return func(c *CronScheduler) {
		c.timeout = d
	}
}

type CronScheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
}

// NewCronScheduler accepts five-field specs and descriptors like @daily.
func NewCronScheduler(opts ...Option) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	entryID, err := c.cron.AddFunc(spec, c.wrap(job, spec))
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	c.entries[name] = entryID
	logger.Info("job scheduled")
	return nil
}

// Next returns the next planned run of the named job.
func (c *CronScheduler) Next(name string) (time.Time, bool) {
	c.mu.Lock()
	id, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return c.cron.Entry(id).Next, true
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) runContext() (context.Context, context.CancelFunc) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		logger := logutil.GetLogger(context.Background()).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		if !running.CompareAndSwap(false, true) {
			logger.Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		ctx, cancel := c.runContext()
		defer cancel()
		start := time.Now()
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job failed", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}
