package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	resty "github.com/go-resty/resty/v2"
)

// DefaultResendURL is the public Resend API endpoint.
const DefaultResendURL = "https://api.resend.com"

// ProviderError is returned when the email API rejects a message.
type ProviderError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("email provider status %d", e.StatusCode)
	}
	return e.Message
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

type resendImpl struct {
	client *resty.Client
}

// NewResend returns a Sender backed by the Resend HTTP API.
func NewResend(baseURL, apiKey string) Sender {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultResendURL
	}
	return &resendImpl{
		client: resty.New().
			SetTimeout(15*time.Second).
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json"),
	}
}

func (r *resendImpl) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("at least one recipient is required")
	}

	result := &resendResponse{}
	failure := &resendError{}
	res, err := r.client.R().
		SetContext(ctx).
		SetBody(resendEmail{
			From:    msg.From,
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}).
		SetResult(result).
		SetError(failure).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if res.IsError() {
		return &ProviderError{
			StatusCode: res.StatusCode(),
			Name:       failure.Name,
			Message:    failure.Message,
		}
	}
	return nil
}
