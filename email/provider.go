// Package email renders and sends issue notification emails via multiple
// providers.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"city-sentinel/pkg/sentinel"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender dispatches change notification emails using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	mockMode bool // No provider credential configured
}

// New creates a new email sender with the given provider.
func New(provider Provider, logger *slog.Logger) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
	}
}

// NewMock creates a sender that logs instead of sending. Used when no
// provider credential is configured, so a development environment never
// performs network I/O and no delivery is counted.
func NewMock(logger *slog.Logger) *Sender {
	return &Sender{
		logger:   logger,
		mockMode: true,
	}
}

// Dispatch renders the email for one recipient and submits it to the
// provider. A nil attempt with a nil error means delivery was skipped
// (mock mode). On provider failure the returned attempt still carries the
// rendered subject and body, so callers can log and aggregate.
func (s *Sender) Dispatch(ctx context.Context, event *sentinel.ChangeEvent, issue *sentinel.IssueSnapshot, target *sentinel.RecipientTarget) (*sentinel.EmailSendAttempt, error) {
	if target.Email == "" {
		return nil, errors.New("target has no email address")
	}

	subject := subjectFor(event, issue, target.Role)

	// Mock email mode for local development
	if s.mockMode {
		s.logger.Info("MOCK EMAIL",
			"to", target.Email,
			"subject", subject,
			"issue_id", issue.ID,
			"role", target.Role)
		return nil, nil
	}

	render, ok := bodyTemplates[templateKey{kind: event.Kind, role: target.Role}]
	if !ok {
		return nil, fmt.Errorf("no template for kind %q role %q", event.Kind, target.Role)
	}

	attempt := &sentinel.EmailSendAttempt{
		To:      target.Email,
		Subject: subject,
		HTML:    render(issue, event),
	}

	s.logger.Info("Sending notification email",
		"to", attempt.To,
		"subject", attempt.Subject,
		"issue_id", issue.ID,
		"role", target.Role)

	if err := s.provider.Send(ctx, attempt.To, attempt.Subject, attempt.HTML); err != nil {
		attempt.Err = err
		return attempt, fmt.Errorf("send email: %w", err)
	}
	return attempt, nil
}

// subjectFor builds the email subject. Owners see the event headline;
// followers see the issue title so updates thread per issue.
func subjectFor(event *sentinel.ChangeEvent, issue *sentinel.IssueSnapshot, role sentinel.Role) string {
	label := sentinel.Label(event.Kind, event.NewValue)
	if role == sentinel.RoleOwner {
		if event.Kind == sentinel.KindVerification {
			return fmt.Sprintf("Issue Verification Updated: %s", label)
		}
		return fmt.Sprintf("Issue Status Updated: %s", label)
	}
	if event.Kind == sentinel.KindVerification {
		return fmt.Sprintf("Verification Update: %s", issue.Title)
	}
	return fmt.Sprintf("Issue Update: %s", issue.Title)
}
