package notify

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/watch"
)

// deliveryConcurrency bounds the per-event fan-out.
const deliveryConcurrency = 4

// Sender delivers one rendered notification to one recipient.
type Sender interface {
	SendNotification(ctx context.Context, recipientID int64, text string) error
}

// permanenter is the classification a Sender's errors may carry. A
// permanent failure means the recipient can never be reached again.
type permanenter interface {
	Permanent() bool
}

// Notifier fans detected job changes out to subscribed recipients. It
// implements watch.Sink.
type Notifier struct {
	registry *Registry
	sender   Sender
	logger   *slog.Logger
}

// NewNotifier creates a Notifier delivering through sender.
func NewNotifier(registry *Registry, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{registry: registry, sender: sender, logger: logger}
}

// HandleChange renders the event and delivers it to every subscriber
// of the owning client. Deliveries run concurrently; one recipient's
// failure never blocks the others. Recipients reported permanently
// unreachable are dropped from every subscription.
func (n *Notifier) HandleChange(ctx context.Context, client tabular.Client, ev watch.Event) {
	recipients := n.registry.RecipientsFor(client.ID)
	if len(recipients) == 0 {
		return
	}

	text := renderEvent(ev)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deliveryConcurrency)
	for _, recipientID := range recipients {
		g.Go(func() error {
			err := n.sender.SendNotification(ctx, recipientID, text)
			if err == nil {
				return nil
			}

			var p permanenter
			if errors.As(err, &p) && p.Permanent() {
				n.logger.Info("recipient unreachable, unsubscribing",
					"recipient_id", recipientID, "error", err)
				n.registry.UnsubscribeAll(recipientID)
				return nil
			}

			n.logger.Warn("notification delivery failed",
				"recipient_id", recipientID, "job_id", ev.Job.ID, "error", err)
			return nil
		})
	}
	// Deliveries swallow their own errors; Wait only orders shutdown.
	_ = g.Wait()
}
