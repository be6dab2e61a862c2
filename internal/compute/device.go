package compute

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Kernel processes rows [y0, y1) of a dispatch grid.
type Kernel func(y0, y1 int) error

// Empty is the result type of dispatches that only write into buffers.
type Empty struct{}

// Device executes kernels. Implementations must run the kernel over every
// row exactly once before the returned task completes.
type Device interface {
	Dispatch(ctx context.Context, name string, rows int, k Kernel) *Task[Empty]
}

// CPU runs kernels on goroutines, splitting the grid into row bands.
type CPU struct {
	workers int
}

// NewCPU creates a CPU device. workers <= 0 uses GOMAXPROCS.
func NewCPU(workers int) *CPU {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CPU{workers: workers}
}

// Workers returns the band parallelism.
func (d *CPU) Workers() int {
	return d.workers
}

// Dispatch implements Device.
func (d *CPU) Dispatch(ctx context.Context, name string, rows int, k Kernel) *Task[Empty] {
	return Go(func() (Empty, error) {
		if rows <= 0 {
			return Empty{}, nil
		}
		bands := min(d.workers, rows)
		per := (rows + bands - 1) / bands

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.workers)
		for y0 := 0; y0 < rows; y0 += per {
			y1 := min(y0+per, rows)
			g.Go(func() (err error) {
				if err := gctx.Err(); err != nil {
					return err
				}
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %s: panic: %v", ErrDispatchFailed, name, r)
					}
				}()
				if err := k(y0, y1); err != nil {
					return fmt.Errorf("%w: %s: %w", ErrDispatchFailed, name, err)
				}
				return nil
			})
		}
		return Empty{}, g.Wait()
	})
}
