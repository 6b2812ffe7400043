package tasks

import (
	"context"
	"sync"
)

// Runner is a reader loop; both consumer.GroupReader and consumer.TailReader
// satisfy it.
type Runner interface {
	Run(ctx context.Context) error
}

// ConsumerTask is a reader running on its own goroutine
type ConsumerTask struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// StartConsumer runs reader until it stops by itself, ctx is canceled or Stop
// is called.
func StartConsumer(ctx context.Context, reader Runner) *ConsumerTask {
	ctx, cancel := context.WithCancel(ctx)
	task := &ConsumerTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer cancel()
		err := reader.Run(ctx)
		task.mu.Lock()
		task.err = err
		task.mu.Unlock()
	}()

	return task
}

// Done is closed once the reader has returned
func (t *ConsumerTask) Done() <-chan struct{} {
	return t.done
}

// Stop asks the reader to finish after its current batch
func (t *ConsumerTask) Stop() {
	t.cancel()
}

// Wait blocks until the reader returns and reports its error
func (t *ConsumerTask) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
