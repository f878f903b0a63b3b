package repo

import (
	"context"
	"net/smtp"
	"testing"

	"CareerBot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailerSend(t *testing.T) {
	m := NewMailer("smtp.example.com", "587", "bot@example.com", "pw", "")
	var gotAddr string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "bot@example.com", from)
		assert.NotNil(t, a)
		return nil
	}

	err := m.Send(context.Background(), model.Mail{To: []string{"c@example.com"}, Subject: "Hi\nthere", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Hi there\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nhello")
}

func TestMailerRejectsBadInput(t *testing.T) {
	m := NewMailer("smtp.example.com", "25", "", "", "bot@example.com")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return nil }

	assert.Error(t, m.Send(context.Background(), model.Mail{}))
	assert.Error(t, m.Send(context.Background(), model.Mail{To: []string{"a@b.c\r\nBcc: x@y.z"}}))
	assert.Error(t, NewMailer("", "", "", "", "").Send(context.Background(), model.Mail{To: []string{"a@b.c"}}))
}
