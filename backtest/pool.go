package backtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/internal/logging"
	"github.com/rustyeddy/tradebot/strategies"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one run in a batch. Each job gets its own Engine.
type Job struct {
	Name     string
	Config   strategies.Config
	Provider feed.Provider
	// Request defaults its Symbol and Interval from Config.
	Request feed.Request
	Options []Option
}

// JobResult pairs a job with its outcome.
type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// Pool runs jobs with bounded concurrency.
type Pool struct {
	limit int
	log   *zap.Logger
}

// NewPool returns a pool running at most limit jobs at once. A limit of
// zero or less uses GOMAXPROCS.
func NewPool(limit int, log *zap.Logger) *Pool {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Pool{limit: limit, log: logging.OrNop(log)}
}

// RunAll runs every job and returns the outcomes in job order. A failing
// job does not stop the others. The returned error is ctx's, if it ended.
func (p *Pool) RunAll(ctx context.Context, jobs []Job) ([]JobResult, error) {
	out := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			out[i] = p.run(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

func (p *Pool) run(ctx context.Context, job Job) JobResult {
	jr := JobResult{Name: job.Name}
	if err := ctx.Err(); err != nil {
		jr.Err = &Error{Kind: KindCanceled, Op: "pool", Index: -1, Err: err}
		return jr
	}

	log := p.log.With(zap.String("job", job.Name))
	opts := append([]Option{WithLogger(log)}, job.Options...)
	eng, err := New(job.Config, opts...)
	if err != nil {
		jr.Err = err
		return jr
	}

	req := job.Request
	if req.Symbol == "" {
		req.Symbol = job.Config.Symbol
	}
	if req.Interval == "" {
		req.Interval = job.Config.Interval
	}
	if job.Provider == nil {
		jr.Err = configError("pool", fmt.Errorf("job %q has no bar provider", job.Name))
		return jr
	}
	bars, err := job.Provider.Bars(ctx, req)
	if err != nil && !errors.Is(err, feed.ErrNoData) {
		jr.Err = fmt.Errorf("job %s: load bars: %w", job.Name, err)
		return jr
	}

	jr.Result, jr.Err = eng.Run(ctx, bars)
	return jr
}
