package compute

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCPU_Dispatch_CoversEveryRowOnce(t *testing.T) {
	const rows = 37
	var hits [rows]atomic.Int32

	d := NewCPU(4)
	_, err := d.Dispatch(context.Background(), "count", rows, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			hits[y].Add(1)
		}
		return nil
	}).Wait()
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	for y := range hits {
		if n := hits[y].Load(); n != 1 {
			t.Errorf("row %d processed %d times, want 1", y, n)
		}
	}
}

func TestCPU_Dispatch_KernelError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewCPU(2).Dispatch(context.Background(), "fail", 8, func(y0, y1 int) error {
		return boom
	}).Wait()
	if !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("expected ErrDispatchFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped kernel error, got %v", err)
	}
}

func TestCPU_Dispatch_RecoversPanic(t *testing.T) {
	_, err := NewCPU(2).Dispatch(context.Background(), "panic", 4, func(y0, y1 int) error {
		panic("bad kernel")
	}).Wait()
	if !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("expected ErrDispatchFailed, got %v", err)
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	_, err := Go(func() (int, error) {
		panic("oops")
	}).Wait()
	if !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("expected ErrDispatchFailed, got %v", err)
	}
}

func TestResolved(t *testing.T) {
	v, err := Resolved(42, nil).Wait()
	if v != 42 || err != nil {
		t.Errorf("Resolved().Wait() = (%v, %v), want (42, nil)", v, err)
	}
}

func TestMaxFloat32_Concurrent(t *testing.T) {
	var m MaxFloat32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v float32) {
			defer wg.Done()
			m.Observe(v)
		}(float32(i) * 0.5)
	}
	wg.Wait()
	if got := m.Load(); got != 49.5 {
		t.Errorf("max = %v, want 49.5", got)
	}
}
