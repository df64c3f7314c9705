package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconf/regdesk/config"
)

func TestHTTPSenderPayload(t *testing.T) {
	var captured sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewHTTPSender(&config.Config{
		MailEndpoint: srv.URL,
		MailFrom:     "noreply@conf.example.org",
		MailFromName: "Registration Desk",
		MailReplyTo:  "office@conf.example.org",
	})

	err := sender.Send(context.Background(), Message{
		To:      "ana@example.org",
		ToName:  "Ana",
		Subject: "Payment confirmed",
		Text:    "Your payment has been confirmed.",
		HTML:    "<p>Your payment has been confirmed.</p>",
	})
	require.NoError(t, err)

	require.Len(t, captured.Personalizations, 1)
	require.Len(t, captured.Personalizations[0].To, 1)
	assert.Equal(t, "ana@example.org", captured.Personalizations[0].To[0].Email)
	require.NotNil(t, captured.Personalizations[0].ReplyTo)
	assert.Equal(t, "office@conf.example.org", captured.Personalizations[0].ReplyTo.Email)
	assert.Equal(t, "noreply@conf.example.org", captured.From.Email)
	assert.Equal(t, "Payment confirmed", captured.Subject)
	require.Len(t, captured.Content, 2)
	assert.Equal(t, "text/plain", captured.Content[0].Type)
	assert.Equal(t, "text/html", captured.Content[1].Type)
}

func TestHTTPSenderRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewHTTPSender(&config.Config{MailEndpoint: srv.URL, MailFrom: "noreply@conf.example.org"})
	err := sender.Send(context.Background(), Message{To: "ana@example.org", Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNoopWhenUnconfigured(t *testing.T) {
	sender := NewHTTPSender(&config.Config{})
	_, isNoop := sender.(Noop)
	assert.True(t, isNoop)
	assert.NoError(t, sender.Send(context.Background(), Message{To: "ana@example.org"}))
}
