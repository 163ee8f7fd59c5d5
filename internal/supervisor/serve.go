package supervisor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Serve runs the scheduling loop alongside any number of sibling
// goroutines (the daemon passes the debug transport listener and, on the
// browser host, the worker listener) and
// returns once the first one exits or ctx is cancelled, cancelling the
// rest — the same fan-out-then-wait shape the teacher's daemon.Run uses
// for its engine/transport pair, generalized past two fixed goroutines.
func (s *Supervisor[H]) Serve(ctx context.Context, extra ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	for _, fn := range extra {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
