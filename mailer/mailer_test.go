package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

func TestBuildMsg(t *testing.T) {
	t.Run("sets headers and message id", func(t *testing.T) {
		m, err := buildMsg(Message{
			From:    "Housing Lord <housinglords@example.com>",
			To:      []string{"owner@example.com", "admin@example.com"},
			Subject: "New interest",
			Text:    "hello",
			HTML:    "<p>hello</p>",
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"New interest"}, m.GetGenHeader(mail.HeaderSubject))
		assert.Len(t, m.GetTo(), 2)
		assert.NotEmpty(t, messageID(m))
	})

	t.Run("requires recipients", func(t *testing.T) {
		_, err := buildMsg(Message{From: "a@example.com", Subject: "x", Text: "y"})
		assert.ErrorIs(t, err, ErrNoRecipients)
	})

	t.Run("rejects malformed sender", func(t *testing.T) {
		_, err := buildMsg(Message{From: "not an address", To: []string{"a@example.com"}})
		assert.Error(t, err)
	})
}

func TestNewSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{})
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	s := NewLog(zap.NewNop())

	id, err := s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s", Text: "t"})
	require.NoError(t, err)
	assert.Contains(t, id, "@housinglord.local")

	_, err = s.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNoRecipients)
}
