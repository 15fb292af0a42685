package screen

import "context"

// Dispatcher runs fn on the context that owns the screen state.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Loop is a single-goroutine event loop. Everything dispatched to it runs
// in order on the goroutine calling Run.
type Loop struct {
	fns  chan func()
	done chan struct{}
}

func NewLoop() *Loop {
	return &Loop{fns: make(chan func(), 64), done: make(chan struct{})}
}

// Run executes dispatched functions until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.fns:
			fn()
		}
	}
}

// Dispatch queues fn. It is dropped once the loop has stopped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case l.fns <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits for it. Calling Do from the loop itself
// deadlocks.
func (l *Loop) Do(fn func()) {
	ran := make(chan struct{})
	l.Dispatch(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
	case <-l.done:
	}
}
