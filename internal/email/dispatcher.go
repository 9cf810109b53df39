package email

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redmonkez12/go-contacts-api/internal/logging"
)

var (
	ErrQueueFull        = errors.New("email queue is full")
	ErrDispatcherClosed = errors.New("email dispatcher is closed")
)

const sendTimeout = 30 * time.Second

// Sender delivers one message
type Sender interface {
	SendConfirmation(ctx context.Context, msg Message) error
}

// Dispatcher queues messages and sends them from background workers so
// request handlers never wait on SMTP. Failed sends are logged, not retried.
type Dispatcher struct {
	sender Sender
	logger *logging.Logger
	ch     chan Message
	done   chan struct{}
	wg     sync.WaitGroup
	// mu orders Enqueue's send against Close so nothing lands after the drain
	mu     sync.RWMutex
	closed bool
	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewDispatcher(sender Sender, logger *logging.Logger, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}

	d := &Dispatcher{
		sender: sender,
		logger: logger,
		ch:     make(chan Message, queueSize),
		done:   make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}

	return d
}

// Enqueue hands msg to the workers without blocking
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.SendConfirmation(ctx, msg); err != nil {
		d.failed.Add(1)
		d.logger.Error("failed to send confirmation email", "email", msg.To, "error", err)
		return
	}

	d.sent.Add(1)
	d.logger.Info("confirmation email sent", "email", msg.To)
}

// Close stops accepting messages, drains the queue and waits for the workers
// or for ctx to end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports delivered and failed message counts
func (d *Dispatcher) Stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}
