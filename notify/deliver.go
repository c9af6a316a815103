package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/mailer"
)

const (
	DefaultAttempts    = 3
	DefaultDelay       = time.Second
	DefaultSendTimeout = 10 * time.Second
)

// Deliverer sends notifications through a mailer.Sender with a bounded
// number of attempts and a fixed delay between them.
type Deliverer struct {
	sender      mailer.Sender
	composer    Composer
	logger      *zap.Logger
	attempts    int
	delay       time.Duration
	sendTimeout time.Duration
}

type DelivererOption func(*Deliverer)

func WithAttempts(n int) DelivererOption {
	return func(d *Deliverer) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func WithDelay(delay time.Duration) DelivererOption {
	return func(d *Deliverer) {
		if delay >= 0 {
			d.delay = delay
		}
	}
}

func WithSendTimeout(timeout time.Duration) DelivererOption {
	return func(d *Deliverer) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) DelivererOption {
	return func(d *Deliverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDeliverer(sender mailer.Sender, composer Composer, opts ...DelivererOption) *Deliverer {
	d := &Deliverer{
		sender:      sender,
		composer:    composer,
		logger:      zap.NewNop(),
		attempts:    DefaultAttempts,
		delay:       DefaultDelay,
		sendTimeout: DefaultSendTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Deliverer) Attempts() int { return d.attempts }

func (d *Deliverer) Delay() time.Duration { return d.delay }

// Deliver composes n and sends it, retrying transport failures. It never
// returns an error: skipped and failed deliveries are logged.
func (d *Deliverer) Deliver(ctx context.Context, n Notification) {
	msg, err := d.composer.Compose(n)
	if err != nil {
		d.logCompose(n, err)
		return
	}

	log := d.logger.With(zap.String("type", n.Type), zap.String("property_id", n.PropertyID()))

	for attempt := 1; attempt <= d.attempts; attempt++ {
		id, err := d.send(ctx, msg)
		if err == nil {
			log.Info("notification sent", zap.String("message_id", id), zap.Int("attempt", attempt))
			return
		}

		log.Warn("notification attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == d.attempts {
			break
		}

		select {
		case <-ctx.Done():
			log.Error("notification abandoned", zap.Error(ctx.Err()))
			return
		case <-time.After(d.delay):
		}
	}

	log.Error("notification dropped after retries", zap.Int("attempts", d.attempts))
}

// SendOnce makes a single delivery attempt. Retrying is left to the caller,
// which is how the queue worker uses it.
func (d *Deliverer) SendOnce(ctx context.Context, n Notification) (string, error) {
	msg, err := d.composer.Compose(n)
	if err != nil {
		return "", err
	}

	return d.send(ctx, msg)
}

func (d *Deliverer) send(ctx context.Context, msg mailer.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send notification: %w", err)
	}

	return id, nil
}

func (d *Deliverer) logCompose(n Notification, err error) {
	if errors.Is(err, ErrNoRecipients) {
		d.logger.Info("notification skipped, no recipients",
			zap.String("type", n.Type), zap.String("property_id", n.PropertyID()))

		return
	}

	d.logger.Error("failed to compose notification", zap.String("type", n.Type), zap.Error(err))
}
