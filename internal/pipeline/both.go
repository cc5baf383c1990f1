// Package pipeline wires the HAWC client, recommendation engine, chart
// renderer, run history and notifications into end-to-end operations.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Both runs a and b concurrently and returns once both have resolved. If
// either fails the other's context is cancelled and the first error is
// returned. Callers continue exactly once, after both results are in hand.
func Both[A, B any](ctx context.Context, a func(context.Context) (A, error), b func(context.Context) (B, error)) (A, B, error) {
	var ra A
	var rb B
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a(gctx)
		if err != nil {
			return err
		}
		ra = v
		return nil
	})
	g.Go(func() error {
		v, err := b(gctx)
		if err != nil {
			return err
		}
		rb = v
		return nil
	})
	if err := g.Wait(); err != nil {
		var za A
		var zb B
		return za, zb, err
	}
	return ra, rb, nil
}
