package tool

import "time"

// Invocation captures one completed tool call.
type Invocation struct {
	ID        string
	Tool      string
	StartedAt time.Time
	Duration  time.Duration
	IsError   bool
	// ErrorKind is empty on success, otherwise a ghost.ErrorKind or one of the
	// Kind* constants in this package.
	ErrorKind string
	// Summary is the first line of the result text.
	Summary string
}

// Observer receives invocation events after each call completes.
type Observer interface {
	ObserveInvocation(inv Invocation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Invocation)

// ObserveInvocation calls f(inv).
func (f ObserverFunc) ObserveInvocation(inv Invocation) {
	f(inv)
}

// Observers fans each event out to every non-nil observer in order.
type Observers []Observer

// ObserveInvocation forwards inv to every observer.
func (o Observers) ObserveInvocation(inv Invocation) {
	for _, observer := range o {
		if observer != nil {
			observer.ObserveInvocation(inv)
		}
	}
}

type noopObserver struct{}

func (noopObserver) ObserveInvocation(Invocation) {}
