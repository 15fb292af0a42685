package screen

import "context"

// Check drives the screen without a UI: it initializes, presses evaluate
// once and waits for the result, all on a private Loop. It returns the
// final state.
func Check(ctx context.Context, cfg Config, client SDK, hosts HostLocator, opts ...Option) State {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := NewLoop()
	go func() { _ = loop.Run(loopCtx) }()

	settled := make(chan struct{}, 1)
	ui := DispatcherFunc(func(fn func()) {
		loop.Dispatch(func() {
			fn()
			select {
			case settled <- struct{}{}:
			default:
			}
		})
	})
	c := New(cfg, client, hosts, ui, opts...)

	var st State
	var started bool
	loop.Do(func() {
		c.Initialize(ctx)
		started = c.EvaluateAndDisplay(ctx)
		st = c.State()
	})
	if !started {
		return st
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return st
	}
	loop.Do(func() { st = c.State() })
	return st
}
