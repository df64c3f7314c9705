// Package mail sends transactional notifications (payment confirmed or
// rejected) through an HTTP relay speaking the MailChannels send API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openconf/regdesk/config"
)

// Message is one outbound notification. Cc is optional and typically
// carries the organizers' office address.
type Message struct {
	To      string
	ToName  string
	Cc      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message. Delivery failures must not roll back the
// state change that triggered the notification; callers log and move on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Noop discards messages. Used when no relay is configured and in
// tests.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type personalization struct {
	To      []address `json:"to"`
	Cc      []address `json:"cc,omitempty"`
	ReplyTo *address  `json:"reply_to,omitempty"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// HTTPSender posts messages to a MailChannels-compatible endpoint.
type HTTPSender struct {
	endpoint string
	from     address
	replyTo  string
	client   *http.Client
}

// NewHTTPSender wires the relay from the platform config. It returns a
// Noop sender when no sender address is configured.
func NewHTTPSender(cfg *config.Config) Sender {
	if cfg.MailFrom == "" {
		return Noop{}
	}
	endpoint := cfg.MailEndpoint
	if endpoint == "" {
		endpoint = "https://api.mailchannels.net/tx/v1/send"
	}
	return &HTTPSender{
		endpoint: endpoint,
		from:     address{Email: cfg.MailFrom, Name: cfg.MailFromName},
		replyTo:  cfg.MailReplyTo,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	pers := personalization{To: []address{{Email: msg.To, Name: msg.ToName}}}
	if msg.Cc != "" {
		pers.Cc = []address{{Email: msg.Cc}}
	}
	if s.replyTo != "" {
		pers.ReplyTo = &address{Email: s.replyTo}
	}

	req := sendRequest{
		Personalizations: []personalization{pers},
		From:             s.from,
		Subject:          msg.Subject,
	}
	if msg.Text != "" {
		req.Content = append(req.Content, content{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		req.Content = append(req.Content, content{Type: "text/html", Value: msg.HTML})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding mail request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("posting to mail relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned %d", resp.StatusCode)
	}
	return nil
}
