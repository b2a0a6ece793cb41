// Package scheduler runs a work function over independent inputs with
// bounded concurrency, batching, and per-item failure isolation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Options configures a Runner.
type Options struct {
	// Enabled turns batched concurrency on. Disabled runners process
	// every input sequentially.
	Enabled bool
	// BatchSize bounds how many inputs one scheduling round covers.
	BatchSize int
	// MaxWorkers caps simultaneous worker calls within a batch; 0 means
	// the whole batch runs at once.
	MaxWorkers int
}

// Result is one output slot. Err is set when the worker call for the
// corresponding input failed; Value is then the zero value.
type Result[O any] struct {
	Value O
	Err   error
}

// Stats is a point-in-time snapshot of a run, queryable while workers
// are still executing.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Elapsed   time.Duration
	// ETA estimates the remaining time from the successful-completion
	// rate; failed items count toward the backlog, not the rate. Zero
	// until at least one item completed.
	ETA time.Duration
}

// Runner schedules batched runs. All counter mutations happen under one
// mutex shared by every concurrent worker in a batch.
type Runner struct {
	opts Options

	mu        sync.Mutex
	total     int
	completed int
	failed    int
	started   time.Time
	finished  time.Time
}

// New builds a runner.
func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run executes worker over every input and returns one result per
// input, in input order. With concurrency disabled or a single input,
// processing is sequential. Otherwise inputs are partitioned into
// fixed-size batches: all calls within a batch run concurrently and are
// awaited together, and batch k+1 never starts before batch k fully
// completed, bounding peak concurrency. A failing call is recorded in
// its slot and does not abort its siblings. There is no cancellation
// mid-batch; callers observing ctx errors should stop submitting.
func Run[I, O any](ctx context.Context, r *Runner, inputs []I, worker func(context.Context, I) (O, error)) []Result[O] {
	results := make([]Result[O], len(inputs))
	r.begin(len(inputs))
	defer r.end()

	if !r.opts.Enabled || len(inputs) <= 1 {
		for i := range inputs {
			results[i] = invoke(ctx, worker, inputs[i])
			r.record(results[i].Err == nil)
		}
		return results
	}

	batchSize := r.opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var sem chan struct{}
	if r.opts.MaxWorkers > 0 && r.opts.MaxWorkers < batchSize {
		sem = make(chan struct{}, r.opts.MaxWorkers)
	}

	for start := 0; start < len(inputs); start += batchSize {
		end := min(start+batchSize, len(inputs))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				results[i] = invoke(ctx, worker, inputs[i])
				r.record(results[i].Err == nil)
			}(i)
		}
		wg.Wait()
	}
	return results
}

// invoke isolates one worker call; a panic is recorded as that item's
// failure instead of tearing down the batch.
func invoke[I, O any](ctx context.Context, worker func(context.Context, I) (O, error), input I) (res Result[O]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[O]{Err: fmt.Errorf("worker panic: %v", p)}
		}
	}()
	value, err := worker(ctx, input)
	return Result[O]{Value: value, Err: err}
}

func (r *Runner) begin(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.completed = 0
	r.failed = 0
	r.started = time.Now()
	r.finished = time.Time{}
}

func (r *Runner) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = time.Now()
}

func (r *Runner) record(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.completed++
	} else {
		r.failed++
	}
}

// Stats returns a snapshot of the current or most recent run.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Total:     r.total,
		Completed: r.completed,
		Failed:    r.failed,
	}
	if r.started.IsZero() {
		return s
	}
	if r.finished.IsZero() {
		s.Elapsed = time.Since(r.started)
	} else {
		s.Elapsed = r.finished.Sub(r.started)
	}

	if r.completed > 0 && s.Elapsed > 0 {
		remaining := r.total - r.completed
		rate := float64(r.completed) / s.Elapsed.Seconds()
		if rate > 0 && remaining > 0 {
			s.ETA = time.Duration(float64(remaining) / rate * float64(time.Second))
		}
	}
	return s
}
