package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsEverySubmittedTask(t *testing.T) {
	p := NewPool("test", 3, 8)
	defer p.Stop(context.Background())

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		if err := p.Submit(context.Background(), func(context.Context) error {
			n.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	p.Wait()

	if got := n.Load(); got != 50 {
		t.Errorf("ran %d tasks, want 50", got)
	}
}

func TestPool_SurvivesPanicsAndErrors(t *testing.T) {
	p := NewPool("test", 1, 4)
	defer p.Stop(context.Background())

	var ran atomic.Bool
	p.Submit(context.Background(), func(context.Context) error { panic("boom") })
	p.Submit(context.Background(), func(context.Context) error { return errors.New("failed") })
	p.Submit(context.Background(), func(context.Context) error {
		ran.Store(true)
		return nil
	})
	p.Wait()

	if !ran.Load() {
		t.Error("worker should keep running after a panic")
	}
}

func TestPool_TrySubmitWhenFull(t *testing.T) {
	p := NewPool("test", 1, 1)
	defer p.Stop(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	block := func(context.Context) error {
		close(started)
		<-release
		return nil
	}

	if !p.TrySubmit(block) {
		t.Fatal("TrySubmit() on an idle pool = false")
	}
	<-started

	noop := func(context.Context) error { return nil }
	if !p.TrySubmit(noop) {
		t.Fatal("TrySubmit() with queue space = false")
	}
	if p.TrySubmit(noop) {
		t.Error("TrySubmit() on a full queue = true, want false")
	}

	close(release)
	p.Wait()
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	p := NewPool("test", 1, 0)
	defer p.Stop(context.Background())

	release := make(chan struct{})
	p.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit() error = %v, want DeadlineExceeded", err)
	}

	close(release)
	p.Wait()
}

func TestPool_Stop(t *testing.T) {
	p := NewPool("test", 2, 16)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		p.Submit(context.Background(), func(context.Context) error {
			time.Sleep(time.Millisecond)
			n.Add(1)
			return nil
		})
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := n.Load(); got != 10 {
		t.Errorf("Stop() drained %d tasks, want 10", got)
	}
	if err := p.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after Stop error = %v, want ErrPoolClosed", err)
	}
	if p.TrySubmit(func(context.Context) error { return nil }) {
		t.Error("TrySubmit() after Stop = true")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestPool_StopCancelsOnDeadline(t *testing.T) {
	p := NewPool("test", 1, 1)

	cancelled := make(chan struct{})
	p.Submit(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want DeadlineExceeded", err)
	}

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Error("running task was not cancelled")
	}
}

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	var (
		mu      sync.Mutex
		active  = map[string]int{}
		overlap bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 40; i++ {
		key := []string{"a.jpg", "b.jpg"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(key)
			defer km.Unlock(key)

			mu.Lock()
			active[key]++
			if active[key] > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(100 * time.Microsecond)

			mu.Lock()
			active[key]--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if overlap {
		t.Error("two holders of the same key at once")
	}

	km.Lock("a.jpg")
	done := make(chan struct{})
	go func() {
		km.Lock("b.jpg")
		km.Unlock("b.jpg")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("different keys should not block each other")
	}
	km.Unlock("a.jpg")
}
