// Package compute runs mask kernels as dispatches over row bands.
//
// A dispatch returns a Task immediately. Callers join it with Wait exactly
// where the result is consumed, which is the only point the pipeline
// stalls on a dispatch.
package compute

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// ErrDispatchFailed is returned when a kernel errors or panics.
var ErrDispatchFailed = errors.New("compute: dispatch failed")

// Task is the pending result of a dispatch.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on its own goroutine and returns its task. A panic inside fn
// is reported as ErrDispatchFailed.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("%w: panic: %v", ErrDispatchFailed, r)
			}
		}()
		t.val, t.err = fn()
	}()
	return t
}

// Resolved returns a task that has already completed.
func Resolved[T any](val T, err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), val: val, err: err}
	close(t.done)
	return t
}

// Wait blocks until the task completes.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.val, t.err
}

// Done is closed when the task completes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// MaxFloat32 is an atomic running maximum over non-negative values.
type MaxFloat32 struct {
	bits atomic.Uint32
}

// Observe raises the maximum to v if v is larger.
func (m *MaxFloat32) Observe(v float32) {
	for {
		old := m.bits.Load()
		if v <= math.Float32frombits(old) {
			return
		}
		if m.bits.CompareAndSwap(old, math.Float32bits(v)) {
			return
		}
	}
}

// Load returns the current maximum (0 if nothing was observed).
func (m *MaxFloat32) Load() float32 {
	return math.Float32frombits(m.bits.Load())
}
