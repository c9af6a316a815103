package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housinglord/housing-lord/mailer"
	"github.com/housinglord/housing-lord/notify"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []mailer.Message
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failures {
		return "", mailer.ErrTransport
	}

	f.sent = append(f.sent, msg)

	return "msg-1", nil
}

func (f *fakeSender) snapshot() (int, []mailer.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls, append([]mailer.Message(nil), f.sent...)
}

func interestNotice() notify.InterestNotice {
	return notify.InterestNotice{
		PropertyID:    "p1",
		PropertyTitle: "Sea View Flat",
		OwnerName:     "Olga",
		OwnerEmail:    "owner@example.com",
		UserName:      "Ann",
		UserEmail:     "ann@example.com",
	}
}

func TestComposeInterest(t *testing.T) {
	c := notify.Composer{From: "noreply@example.com", AdminEmail: "admin@example.com"}

	msg, err := c.Compose(notify.NewInterest(interestNotice()))
	require.NoError(t, err)

	assert.Equal(t, []string{"owner@example.com", "admin@example.com"}, msg.To)
	assert.Equal(t, `New interest in "Sea View Flat"`, msg.Subject)
	assert.Contains(t, msg.Text, "Ann")
	assert.Contains(t, msg.Text, "ann@example.com")
	assert.Contains(t, msg.Text, "Not provided")
	assert.Contains(t, msg.HTML, "Sea View Flat")
}

func TestComposeEscapesHTML(t *testing.T) {
	c := notify.Composer{AdminEmail: "admin@example.com"}

	n := interestNotice()
	n.UserName = "<script>x</script>"

	msg, err := c.Compose(notify.NewInterest(n))
	require.NoError(t, err)

	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "<script>x</script>")
}

func TestComposeRecipients(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		admin string
		want  []string
	}{
		{name: "owner only", owner: "o@example.com", want: []string{"o@example.com"}},
		{name: "admin only", admin: "a@example.com", want: []string{"a@example.com"}},
		{name: "invalid owner", owner: "not-an-email", admin: "a@example.com", want: []string{"a@example.com"}},
		{name: "same address", owner: "a@example.com", admin: "A@example.com", want: []string{"a@example.com"}},
		{name: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notify.Recipients(tt.owner, tt.admin))
		})
	}
}

func TestComposeNoRecipients(t *testing.T) {
	n := interestNotice()
	n.OwnerEmail = ""

	_, err := notify.Composer{}.Compose(notify.NewInterest(n))
	assert.ErrorIs(t, err, notify.ErrNoRecipients)
}

func TestComposeApproval(t *testing.T) {
	c := notify.Composer{AdminEmail: "admin@example.com", DashboardURL: "https://example.com/dashboard"}

	msg, err := c.Compose(notify.NewApproval(notify.ApprovalNotice{
		PropertyID:    "p1",
		PropertyTitle: "Sea View Flat",
		OwnerEmail:    "owner@example.com",
		ApprovedAt:    time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, `Your Property "Sea View Flat" Has Been Approved!`, msg.Subject)
	assert.Contains(t, msg.Text, "3 Apr 2025")
	assert.Contains(t, msg.HTML, "https://example.com/dashboard")
}

func TestDecodeRejectsMismatchedPayload(t *testing.T) {
	_, err := notify.Decode([]byte(`{"type":"notify:interest"}`))
	assert.Error(t, err)

	_, err = notify.Decode([]byte(`{"type":"notify:other","interest":{}}`))
	assert.ErrorIs(t, err, notify.ErrUnknownType)

	payload, err := notify.Encode(notify.NewInterest(interestNotice()))
	require.NoError(t, err)

	n, err := notify.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "Sea View Flat", n.Interest.PropertyTitle)
}

func TestDelivererRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantCalls int
		wantSent  int
	}{
		{name: "first attempt", failures: 0, wantCalls: 1, wantSent: 1},
		{name: "second attempt", failures: 1, wantCalls: 2, wantSent: 1},
		{name: "all attempts fail", failures: 10, wantCalls: 3, wantSent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{failures: tt.failures}
			d := notify.NewDeliverer(sender, notify.Composer{}, notify.WithDelay(time.Millisecond))

			d.Deliver(context.Background(), notify.NewInterest(interestNotice()))

			calls, sent := sender.snapshot()
			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, sent, tt.wantSent)
		})
	}
}

func TestDelivererSkipsWithoutRecipients(t *testing.T) {
	sender := &fakeSender{}
	d := notify.NewDeliverer(sender, notify.Composer{})

	n := interestNotice()
	n.OwnerEmail = ""
	d.Deliver(context.Background(), notify.NewInterest(n))

	calls, _ := sender.snapshot()
	assert.Zero(t, calls)

	_, err := d.SendOnce(context.Background(), notify.NewInterest(n))
	assert.ErrorIs(t, err, notify.ErrNoRecipients)
}

func TestAsyncDispatcherDrainsOnClose(t *testing.T) {
	sender := &fakeSender{}
	d := notify.NewDeliverer(sender, notify.Composer{}, notify.WithDelay(time.Millisecond))
	a := notify.NewAsync(d, 2, 16, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Dispatch(context.Background(), notify.NewInterest(interestNotice())))
	}

	require.NoError(t, a.Close(context.Background()))

	_, sent := sender.snapshot()
	assert.Len(t, sent, 5)

	err := a.Dispatch(context.Background(), notify.NewInterest(interestNotice()))
	assert.ErrorIs(t, err, notify.ErrClosed)
}

type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) Send(ctx context.Context, _ mailer.Message) (string, error) {
	select {
	case <-b.release:
		return "id", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestAsyncDispatcherQueueFull(t *testing.T) {
	sender := &blockingSender{release: make(chan struct{})}
	d := notify.NewDeliverer(sender, notify.Composer{}, notify.WithAttempts(1))
	a := notify.NewAsync(d, 1, 1, nil)

	var full bool
	for i := 0; i < 5; i++ {
		if errors.Is(a.Dispatch(context.Background(), notify.NewInterest(interestNotice())), notify.ErrQueueFull) {
			full = true
			break
		}
	}

	assert.True(t, full)

	close(sender.release)
	require.NoError(t, a.Close(context.Background()))
}

type fakeEnqueuer struct {
	taskType string
	payload  []byte
	opts     []asynq.Option
}

func (f *fakeEnqueuer) EnqueueTask(_ context.Context, taskType string, payload []byte, opts ...asynq.Option) error {
	f.taskType = taskType
	f.payload = payload
	f.opts = opts

	return nil
}

func TestQueueDispatcher(t *testing.T) {
	enq := &fakeEnqueuer{}
	q := notify.NewQueue(enq, 3, "notifications")

	require.NoError(t, q.Dispatch(context.Background(), notify.NewInterest(interestNotice())))

	assert.Equal(t, notify.TypeInterest, enq.taskType)

	n, err := notify.Decode(enq.payload)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", n.Interest.OwnerEmail)

	var maxRetry int = -1
	for _, opt := range enq.opts {
		if opt.Type() == asynq.MaxRetryOpt {
			maxRetry = opt.Value().(int)
		}
	}

	assert.Equal(t, 2, maxRetry)
}
