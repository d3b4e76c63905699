package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_CeilingPerWindow(t *testing.T) {
	const (
		ceiling = 5
		window  = 300 * time.Millisecond
		tasks   = 8
	)

	limiter := New(ceiling, window)
	start := time.Now()

	var firstWindow atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Execute(context.Background(), func() error {
				if time.Since(start) < window {
					firstWindow.Add(1)
				}
				return nil
			})
		}()
	}

	wg.Wait()

	if got := firstWindow.Load(); got > ceiling {
		t.Errorf("expected at most %d admissions in first window, got %d", ceiling, got)
	}
}

func TestLimiter_AllTasksEventuallyRun(t *testing.T) {
	limiter := New(2, 50*time.Millisecond)

	var done atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 7; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Execute(context.Background(), func() error {
				done.Add(1)
				return nil
			})
		}()
	}

	wg.Wait()

	if got := done.Load(); got != 7 {
		t.Errorf("expected all 7 tasks to run, got %d", got)
	}
}

func TestLimiter_PropagatesTaskError(t *testing.T) {
	limiter := New(1, 10*time.Millisecond)

	want := context.DeadlineExceeded
	err := limiter.Execute(context.Background(), func() error {
		return want
	})
	if err != want {
		t.Errorf("expected task error %v, got %v", want, err)
	}
}

func TestLimiter_ContextCancelledWhileQueued(t *testing.T) {
	limiter := New(1, time.Minute)

	// Occupy the only slot for the whole test.
	release := make(chan struct{})
	go limiter.Execute(context.Background(), func() error {
		<-release
		return nil
	})
	defer close(release)

	// Wait for the first task to be admitted.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := limiter.Execute(ctx, func() error {
		t.Error("task should not have been admitted")
		return nil
	})
	if err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestLimiter_DefaultsApplied(t *testing.T) {
	limiter := New(0, 0)

	if cap(limiter.slots) != DefaultCeiling {
		t.Errorf("expected default ceiling %d, got %d", DefaultCeiling, cap(limiter.slots))
	}
	if limiter.window != DefaultWindow {
		t.Errorf("expected default window %v, got %v", DefaultWindow, limiter.window)
	}
}
