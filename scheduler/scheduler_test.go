package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunSequentialWhenDisabled(t *testing.T) {
	r := New(Options{Enabled: false})

	var mu sync.Mutex
	var order []int
	inputs := []int{0, 1, 2, 3}
	results := Run(context.Background(), r, inputs, func(_ context.Context, i int) (int, error) {
		mu.Lock()
		order = append(order, i)
		mu.Unlock()
		return i * 10, nil
	})

	if len(results) != len(inputs) {
		t.Fatalf("got %d results, want %d", len(results), len(inputs))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, res.Err)
		}
		if res.Value != i*10 {
			t.Errorf("result %d = %d, want %d", i, res.Value, i*10)
		}
	}
	for i, got := range order {
		if got != i {
			t.Errorf("disabled runner processed out of order: %v", order)
			break
		}
	}
}

func TestRunPreservesInputOrder(t *testing.T) {
	r := New(Options{Enabled: true, BatchSize: 3, MaxWorkers: 2})

	inputs := make([]int, 10)
	for i := range inputs {
		inputs[i] = i
	}
	results := Run(context.Background(), r, inputs, func(_ context.Context, i int) (string, error) {
		return fmt.Sprintf("item-%d", i), nil
	})

	if len(results) != len(inputs) {
		t.Fatalf("got %d results, want %d", len(results), len(inputs))
	}
	for i, res := range results {
		want := fmt.Sprintf("item-%d", i)
		if res.Value != want {
			t.Errorf("results[%d] = %q, want %q", i, res.Value, want)
		}
	}
}

func TestRunFailureIsolation(t *testing.T) {
	r := New(Options{Enabled: true, BatchSize: 4})
	failing := map[int]bool{2: true, 5: true}

	inputs := make([]int, 8)
	for i := range inputs {
		inputs[i] = i
	}
	boom := errors.New("boom")
	results := Run(context.Background(), r, inputs, func(_ context.Context, i int) (int, error) {
		if failing[i] {
			return 0, boom
		}
		return i, nil
	})

	for i, res := range results {
		if failing[i] {
			if !errors.Is(res.Err, boom) {
				t.Errorf("results[%d].Err = %v, want boom", i, res.Err)
			}
			if res.Value != 0 {
				t.Errorf("results[%d].Value = %d, want zero value", i, res.Value)
			}
		} else if res.Err != nil {
			t.Errorf("results[%d] failed unexpectedly: %v", i, res.Err)
		}
	}

	stats := r.Stats()
	if stats.Completed != 6 || stats.Failed != 2 {
		t.Errorf("stats = %+v, want 6 completed and 2 failed", stats)
	}
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	r := New(Options{Enabled: true, BatchSize: 3})

	inputs := []int{0, 1, 2}
	results := Run(context.Background(), r, inputs, func(_ context.Context, i int) (int, error) {
		if i == 1 {
			panic("worker exploded")
		}
		return i, nil
	})

	if results[1].Err == nil {
		t.Fatal("panicking worker reported no error")
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("panic leaked into sibling workers")
	}
}

func TestRunBatchBoundary(t *testing.T) {
	// Batch k+1 must not start before batch k fully completed.
	r := New(Options{Enabled: true, BatchSize: 2})

	var firstBatchDone atomic.Int32
	release := make(chan struct{})

	inputs := []int{0, 1, 2, 3}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	results := Run(context.Background(), r, inputs, func(_ context.Context, i int) (int, error) {
		if i < 2 {
			<-release
			firstBatchDone.Add(1)
			return i, nil
		}
		if firstBatchDone.Load() != 2 {
			return 0, fmt.Errorf("batch 2 started before batch 1 finished")
		}
		return i, nil
	})

	for i, res := range results {
		if res.Err != nil {
			t.Errorf("results[%d]: %v", i, res.Err)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	r := New(Options{Enabled: true, BatchSize: 8, MaxWorkers: 2})

	var active, peak atomic.Int32
	inputs := make([]int, 8)
	Run(context.Background(), r, inputs, func(_ context.Context, _ int) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return 0, nil
	})

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", got)
	}
}

func TestRunEmptyInputs(t *testing.T) {
	r := New(Options{Enabled: true, BatchSize: 5})
	results := Run(context.Background(), r, nil, func(_ context.Context, _ int) (int, error) {
		t.Error("worker called for empty input")
		return 0, nil
	})
	if len(results) != 0 {
		t.Errorf("got %d results for empty input", len(results))
	}
}

func TestStats(t *testing.T) {
	r := New(Options{Enabled: false})

	if s := r.Stats(); s.Total != 0 || s.Elapsed != 0 {
		t.Errorf("fresh runner stats = %+v, want zeros", s)
	}

	inputs := []int{0, 1, 2}
	Run(context.Background(), r, inputs, func(_ context.Context, i int) (int, error) {
		if i == 2 {
			return 0, errors.New("fail")
		}
		time.Sleep(time.Millisecond)
		return i, nil
	})

	s := r.Stats()
	if s.Total != 3 {
		t.Errorf("Total = %d, want 3", s.Total)
	}
	if s.Completed != 2 || s.Failed != 1 {
		t.Errorf("Completed/Failed = %d/%d, want 2/1", s.Completed, s.Failed)
	}
	if s.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want positive", s.Elapsed)
	}
	// ETA derives from the successful-completion rate, so the failed
	// item still counts as backlog: remaining 1 at 2 completions over
	// the elapsed time.
	if s.ETA <= 0 {
		t.Errorf("ETA = %v, want positive while items remain uncompleted", s.ETA)
	}
	wantETA := time.Duration(float64(s.Elapsed) / 2)
	if diff := s.ETA - wantETA; diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("ETA = %v, want about %v (remaining/rate)", s.ETA, wantETA)
	}
}

func TestStatsETAZeroWhenAllCompleted(t *testing.T) {
	r := New(Options{Enabled: false})
	Run(context.Background(), r, []int{0, 1}, func(_ context.Context, i int) (int, error) {
		time.Sleep(time.Millisecond)
		return i, nil
	})

	if s := r.Stats(); s.ETA != 0 {
		t.Errorf("ETA = %v, want zero once every item completed", s.ETA)
	}
}
