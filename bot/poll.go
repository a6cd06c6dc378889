package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	pollTimeout      = 60 * time.Second
	conflictRetries  = 3
	conflictBackoff  = 30 * time.Second
	transientBackoff = 5 * time.Second
)

// PollLoop drives the inbound side: long-poll the transport, route each
// update, repeat. A conflict (another instance holds the credential) is
// retried with back-off and becomes fatal after the retries are exhausted.
type PollLoop struct {
	poller Poller
	router *Router
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPollLoop builds the loop over a poller and router.
func NewPollLoop(poller Poller, router *Router, log *slog.Logger) *PollLoop {
	if log == nil {
		log = slog.Default()
	}
	return &PollLoop{
		poller: poller,
		router: router,
		log:    log.With("component", "poll"),
		sleep:  sleepCtx,
	}
}

// Run polls until the context is cancelled or a fatal transport error
// occurs. Context cancellation returns nil.
func (p *PollLoop) Run(ctx context.Context) error {
	var offset int64
	conflicts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.poller.Poll(ctx, offset, pollTimeout)
		switch {
		case err == nil:
			conflicts = 0
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, ErrConflict):
			conflicts++
			if conflicts > conflictRetries {
				p.log.Error("polling conflict persists, giving up", "retries", conflictRetries)
				return err
			}
			p.log.Warn("polling conflict, backing off", "attempt", conflicts)
			if serr := p.sleep(ctx, conflictBackoff); serr != nil {
				return nil
			}
			continue
		default:
			p.log.Warn("poll failed, retrying", "error", err)
			if serr := p.sleep(ctx, transientBackoff); serr != nil {
				return nil
			}
			continue
		}

		for _, update := range updates {
			if update.ID >= offset {
				offset = update.ID + 1
			}
			p.router.HandleUpdate(ctx, update)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
