package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Poller watches pending wallet intents until they reach a terminal status.
type Poller struct {
	svc      Service
	interval time.Duration
	logger   logrus.FieldLogger
}

func NewPoller(svc Service, interval time.Duration, logger logrus.FieldLogger) *Poller {
	return &Poller{svc: svc, interval: interval, logger: logger}
}

// PollHandle controls one running poll loop.
type PollHandle struct {
	IntentID uuid.UUID

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops the loop. It does not wait; use Done for that.
func (h *PollHandle) Cancel() {
	h.once.Do(h.cancel)
}

// Done is closed once the loop has exited and will not call back again.
func (h *PollHandle) Done() <-chan struct{} { return h.done }

// Stop cancels the loop and waits for it to exit. It must not be called from
// inside the onTerminal callback.
func (h *PollHandle) Stop() {
	h.Cancel()
	<-h.done
}

// Start polls intentID every interval. onTerminal runs at most once, on the
// loop goroutine, when the intent is approved or rejected. The loop ends
// after onTerminal returns or when the handle is cancelled.
func (p *Poller) Start(parent context.Context, intentID uuid.UUID, onTerminal func(context.Context, *Intent)) *PollHandle {
	ctx, cancel := context.WithCancel(parent)
	h := &PollHandle{IntentID: intentID, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer h.Cancel()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		log := p.logger.WithField("payment_id", intentID)

		for {
			select {
			case <-ctx.Done():
				log.Debug("payment polling cancelled")
				return
			case <-ticker.C:
				in, err := p.svc.Refresh(ctx, intentID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.WithError(err).Warn("payment status check failed, will retry on next tick")
					continue
				}
				if !in.Status.Terminal() {
					continue
				}
				// a cancel that raced with this tick wins
				if ctx.Err() != nil {
					return
				}
				log.WithField("status", in.Status).Info("payment reached terminal status")
				// the sale registration started here must not be torn down by a later Cancel
				onTerminal(context.WithoutCancel(ctx), in)
				return
			}
		}
	}()
	return h
}
