package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"finbot/ledger"
	"finbot/observability"
)

const dispatchInterval = 30 * time.Second

// Dispatcher drains the notification outbox into the chat transport.
// Delivery is at-least-once: a row is only marked processed after the
// transport accepted it, so a crash in between re-delivers.
type Dispatcher struct {
	ledger    *ledger.Ledger
	transport Transport
	log       *slog.Logger
	metrics   *observability.OutboxMetrics
}

// NewDispatcher wires the outbox drain.
func NewDispatcher(l *ledger.Ledger, transport Transport, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		ledger:    l,
		transport: transport,
		log:       log.With("component", "dispatcher"),
		metrics:   observability.Outbox(),
	}
}

// Run drains on an interval until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	d.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers up to one batch of pending notifications, oldest first.
// A failed delivery leaves its row unprocessed for the next drain.
func (d *Dispatcher) Drain(ctx context.Context) {
	pending, err := d.ledger.PendingNotifications(ctx)
	if err != nil {
		d.log.Error("outbox read failed", "error", err)
		return
	}
	d.metrics.SetPending(len(pending))

	for _, n := range pending {
		if err := d.deliver(ctx, n); err != nil {
			d.log.Warn("notification delivery failed", "notification_id", n.ID, "error", err)
			continue
		}
		if err := d.ledger.MarkProcessed(ctx, n.ID); err != nil {
			d.log.Error("notification mark failed", "notification_id", n.ID, "error", err)
			continue
		}
		d.metrics.RecordDelivered()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n ledger.Notification) error {
	if n.Kind == ledger.NotificationBackupReady {
		var payload struct {
			Rows     int    `json:"rows"`
			Filename string `json:"filename"`
			CSV      string `json:"csv"`
		}
		if err := json.Unmarshal(n.Payload, &payload); err == nil && payload.CSV != "" {
			return d.transport.SendDocument(ctx, n.UserID, payload.Filename, []byte(payload.CSV), n.Message)
		}
	}
	return d.transport.SendMessage(ctx, n.UserID, n.Message, nil)
}
