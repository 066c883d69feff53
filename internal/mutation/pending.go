package mutation

import (
	"context"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// Pending is a mutation whose optimistic state is already in the cache and
// whose server call may still be running.
type Pending struct {
	// Optimistic is the task as the cache shows it until the call completes.
	Optimistic task.Task

	done   chan struct{}
	result task.Task
	err    error
}

func newPending(optimistic task.Task) *Pending {
	return &Pending{Optimistic: optimistic, done: make(chan struct{})}
}

// resolved returns a Pending that is already complete.
func resolved(t task.Task, err error) *Pending {
	p := newPending(t)
	p.finish(t, err)
	return p
}

func (p *Pending) finish(t task.Task, err error) {
	p.result, p.err = t, err
	close(p.done)
}

// Done is closed once the mutation was committed or rolled back.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the mutation completes or ctx ends. Cancelling ctx
// stops the wait only; the mutation still completes.
func (p *Pending) Wait(ctx context.Context) (task.Task, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return task.Task{}, ctx.Err()
	}
}
