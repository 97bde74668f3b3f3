package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"filedrop/internal/domain"
	"filedrop/internal/mailer"
	"filedrop/internal/storage"
)

const (
	DefaultMinExpiry     int64 = 30
	DefaultMaxExpiry     int64 = 7 * 24 * 60 * 60
	DefaultMaxRecipients       = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LinkInput is a decoded link request before validation. Expiry is nil when
// the field was missing or not a number; EmailsMalformed is set when emails
// was present but not an array of strings.
type LinkInput struct {
	Key             string
	Expiry          *float64
	Emails          []string
	EmailsMalformed bool
}

// LinkResult is the outcome of a link request. EmailErr is set when the link
// was generated but the notification could not be delivered.
type LinkResult struct {
	Link       domain.SignedLink
	Recipients []string
	EmailErr   error
}

type LinkConfig struct {
	Bucket        string
	MinExpiry     int64
	MaxExpiry     int64
	MaxRecipients int
	From          string
	Logger        *logrus.Logger
}

// LinkService issues presigned download links for private files.
type LinkService interface {
	Issue(ctx context.Context, in LinkInput) (*LinkResult, error)
}

type linkService struct {
	cfg    LinkConfig
	store  storage.Service
	sender mailer.Sender
}

func NewLinkService(cfg LinkConfig, store storage.Service, sender mailer.Sender) LinkService {
	if cfg.MinExpiry <= 0 {
		cfg.MinExpiry = DefaultMinExpiry
	}
	if cfg.MaxExpiry <= 0 {
		cfg.MaxExpiry = DefaultMaxExpiry
	}
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = DefaultMaxRecipients
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &linkService{
		cfg:    cfg,
		store:  store,
		sender: sender,
	}
}

func (s *linkService) Issue(ctx context.Context, in LinkInput) (*LinkResult, error) {
	req, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.HeadObject(ctx, s.cfg.Bucket, req.Key); err != nil {
		return nil, mapStoreError(err)
	}

	url, err := s.store.PresignGetObject(ctx, s.cfg.Bucket, req.Key, time.Duration(req.ExpirySeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	result := &LinkResult{
		Link:       domain.SignedLink{URL: url, ExpirySeconds: req.ExpirySeconds},
		Recipients: req.Recipients,
	}
	if len(req.Recipients) == 0 {
		return result, nil
	}

	if err := s.notify(ctx, req, url); err != nil {
		s.cfg.Logger.Errorf("send link email for %s: %v", req.Key, err)
		result.EmailErr = err
		return result, nil
	}
	s.cfg.Logger.WithFields(logrus.Fields{
		"key":        req.Key,
		"recipients": len(req.Recipients),
	}).Info("link email sent")
	return result, nil
}

// validate applies the request checks in order; the first violation wins.
func (s *linkService) validate(in LinkInput) (domain.LinkRequest, error) {
	key := strings.TrimSpace(in.Key)
	if key == "" || in.Expiry == nil || math.IsNaN(*in.Expiry) {
		return domain.LinkRequest{}, invalid("Invalid request. Key and expiry required.")
	}

	expiry := *in.Expiry
	if expiry < float64(s.cfg.MinExpiry) || expiry > float64(s.cfg.MaxExpiry) {
		return domain.LinkRequest{}, invalid(fmt.Sprintf("Expiry must be between %d and %d seconds.", s.cfg.MinExpiry, s.cfg.MaxExpiry))
	}

	if in.EmailsMalformed {
		return domain.LinkRequest{}, invalid("Invalid email(s) provided.")
	}
	for _, email := range in.Emails {
		if !emailPattern.MatchString(email) {
			return domain.LinkRequest{}, invalid("Invalid email(s) provided.")
		}
	}
	if len(in.Emails) > s.cfg.MaxRecipients {
		return domain.LinkRequest{}, invalid(fmt.Sprintf("Too many recipients (max %d).", s.cfg.MaxRecipients))
	}

	if !validKey(key, domain.TierPrivate) {
		return domain.LinkRequest{}, invalid("Invalid key.")
	}

	return domain.LinkRequest{
		Key:           key,
		ExpirySeconds: int64(math.Floor(expiry)),
		Recipients:    in.Emails,
	}, nil
}

func (s *linkService) notify(ctx context.Context, req domain.LinkRequest, url string) error {
	if s.sender == nil {
		return fmt.Errorf("email sender is not configured")
	}

	fileName := DisplayName(req.Key, domain.TierPrivate)
	var body bytes.Buffer
	if err := linkEmail.Execute(&body, linkEmailData{
		FileName: fileName,
		URL:      template.URL(url),
		Expiry:   FormatExpiry(req.ExpirySeconds),
	}); err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	return s.sender.Send(ctx, mailer.Message{
		From:    s.cfg.From,
		To:      req.Recipients,
		Subject: fmt.Sprintf(`Your Secure Download Link for "%s"`, fileName),
		HTML:    body.String(),
	})
}

// SentMessage is the confirmation shown after the link was mailed.
func SentMessage(recipients []string) string {
	return fmt.Sprintf("Your download link has been sent to %s.", strings.Join(recipients, ", "))
}

type linkEmailData struct {
	FileName string
	URL      template.URL
	Expiry   string
}

var linkEmail = template.Must(template.New("link").Parse(`<div style="font-family: sans-serif; color: #333; padding: 20px;">
  <h2>Here's your secure file link</h2>
  <p>You requested access to the file <strong>{{.FileName}}</strong>.</p>
  <p>This link will expire in <strong>{{.Expiry}}</strong>.</p>
  <p>
    <a href="{{.URL}}" style="display:inline-block;padding:10px 15px;background-color:#2563eb;color:white;text-decoration:none;border-radius:5px;margin-top:10px;">Download File</a>
  </p>
  <p style="font-size: 0.875rem; color: #666;">If you did not request this, you can ignore this email.</p>
</div>
`))
