// Package tasks processes queued notification tasks
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/notify"
)

// TaskHandler handles processing of Redis tasks
type TaskHandler interface {
	ProcessTask(ctx context.Context, task *asynq.Task) error
}

// Sender makes one delivery attempt. notify.Deliverer implements it.
type Sender interface {
	SendOnce(ctx context.Context, n notify.Notification) (string, error)
}

// Handler implements TaskHandler for notification tasks
type Handler struct {
	sender      Sender
	logger      *zap.Logger
	taskTimeout time.Duration
}

// HandlerOption is a function that configures a Handler
type HandlerOption func(*Handler)

// WithTaskTimeout sets the timeout for task processing
func WithTaskTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.taskTimeout = timeout
	}
}

func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a new task handler with the provided options
func NewHandler(sender Sender, opts ...HandlerOption) *Handler {
	h := &Handler{
		sender:      sender,
		logger:      zap.NewNop(),
		taskTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Mux routes the notification task types to h
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(notify.TypeInterest, h)
	mux.Handle(notify.TypeApproval, h)

	return mux
}

// ProcessTask processes a task based on its type. Malformed payloads and
// notifications without recipients are not retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, h.taskTimeout)
	defer cancel()

	switch task.Type() {
	case notify.TypeInterest, notify.TypeApproval:
		return h.processNotification(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s: %w", task.Type(), asynq.SkipRetry)
	}
}

func (h *Handler) processNotification(ctx context.Context, task *asynq.Task) error {
	n, err := notify.Decode(task.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if n.Type != task.Type() {
		return fmt.Errorf("payload type %q does not match task type %q: %w", n.Type, task.Type(), asynq.SkipRetry)
	}

	id, err := h.sender.SendOnce(ctx, n)

	switch {
	case errors.Is(err, notify.ErrNoRecipients):
		h.logger.Info("notification skipped, no recipients", zap.String("property_id", n.PropertyID()))
		return nil
	case err != nil:
		return err
	}

	h.logger.Info("notification sent",
		zap.String("type", n.Type),
		zap.String("property_id", n.PropertyID()),
		zap.String("message_id", id),
	)

	return nil
}
