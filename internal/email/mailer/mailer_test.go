package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendBuildsMessage(t *testing.T) {
	var (
		sent *email.Email
		addr string
		auth smtp.Auth
	)
	m := NewSMTP(SMTPConfig{Addr: "smtp.example.com:587", Host: "smtp.example.com", User: "mailer", Password: "pw", From: "no-reply@example.com"})
	m.send = func(e *email.Email, a string, au smtp.Auth) error {
		sent, addr, auth = e, a, au
		return nil
	}

	err := m.Send(context.Background(), Message{To: "user@example.com", Subject: "Confirm", Text: "click", HTML: "<a>click</a>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", addr)
	assert.NotNil(t, auth)
	assert.Equal(t, "no-reply@example.com", sent.From)
	assert.Equal(t, []string{"user@example.com"}, sent.To)
	assert.Equal(t, "Confirm", sent.Subject)
	assert.Equal(t, []byte("click"), sent.Text)
	assert.Equal(t, []byte("<a>click</a>"), sent.HTML)

	raw, err := sent.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Confirm")
}

func TestSMTPSendWithoutAuth(t *testing.T) {
	m := NewSMTP(SMTPConfig{Addr: "localhost:25", From: "a@example.com"})
	var auth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	m.send = func(_ *email.Email, _ string, au smtp.Auth) error {
		auth = au
		return errors.New("connection refused")
	}
	err := m.Send(context.Background(), Message{To: "b@example.com", Subject: "s", Text: "t"})
	assert.ErrorContains(t, err, "connection refused")
	assert.Nil(t, auth)
}
