package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/logging"
)

// DefaultSendTimeout bounds a single background send.
const DefaultSendTimeout = 10 * time.Second

var errPanicked = errors.New("mailer panicked")

// Dispatcher sends messages on detached goroutines. Callers never see the
// outcome; failures are logged.
type Dispatcher struct {
	mailer  Mailer
	log     logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	// OnResult, when set, is called after every send.
	OnResult func(msg Message, err error)
}

func NewDispatcher(m Mailer, log logging.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{mailer: m, log: log, timeout: timeout}
}

// Dispatch starts sending msg and returns immediately. The send outlives
// ctx's cancellation but keeps its values, so request log fields carry over.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	parent := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(parent, d.timeout)
		defer cancel()

		err := d.send(ctx, msg)
		if err != nil {
			d.log.Error(ctx, "email dispatch failed", "to", msg.To, "subject", msg.Subject, "error", err)
		}
		if d.OnResult != nil {
			d.OnResult(msg, err)
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error(ctx, "email dispatch panicked", "panic", p)
			err = errPanicked
		}
	}()
	return d.mailer.Send(ctx, msg)
}

// Wait blocks until every dispatched send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
