// Package notify orchestrates the status and verification change
// notification fan-out: resolve recipients, write in-app records, dispatch
// emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"city-sentinel/pkg/sentinel"
)

// ErrIssueNotFound reports that the event referenced an unknown issue.
// This is the only fatal condition past request parsing.
var ErrIssueNotFound = errors.New("issue not found")

// IssueStore interface for fetching issue snapshots.
type IssueStore interface {
	Issue(ctx context.Context, issueID string) (*sentinel.IssueSnapshot, error)
}

// Resolver interface for computing recipient targets.
type Resolver interface {
	Resolve(ctx context.Context, issue *sentinel.IssueSnapshot) []sentinel.RecipientTarget
}

// RecordWriter interface for creating in-app notification records.
type RecordWriter interface {
	Write(ctx context.Context, event *sentinel.ChangeEvent, issue *sentinel.IssueSnapshot, target *sentinel.RecipientTarget) (*sentinel.NotificationRecord, error)
}

// Dispatcher interface for sending notification emails. A nil attempt with
// a nil error means delivery was skipped.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *sentinel.ChangeEvent, issue *sentinel.IssueSnapshot, target *sentinel.RecipientTarget) (*sentinel.EmailSendAttempt, error)
}

// IsNotFound checks if a store error means the record doesn't exist.
type IsNotFound func(error) bool

// Summary aggregates the outcome of one notification run.
type Summary struct {
	NotificationsCreated int `json:"notifications_created"`
	EmailsSent           int `json:"emails_sent"`
}

// Orchestrator sequences resolver, writer and dispatcher for one change
// event, tolerating per-target failures.
type Orchestrator struct {
	issues     IssueStore
	resolver   Resolver
	writer     RecordWriter
	emailer    Dispatcher
	isNotFound IsNotFound
	logger     *slog.Logger
}

// Config holds orchestrator configuration.
type Config struct {
	Issues     IssueStore
	Resolver   Resolver
	Writer     RecordWriter
	Emailer    Dispatcher
	IsNotFound IsNotFound
	Logger     *slog.Logger
}

// New creates a new change notification orchestrator.
func New(cfg *Config) *Orchestrator {
	return &Orchestrator{
		issues:     cfg.Issues,
		resolver:   cfg.Resolver,
		writer:     cfg.Writer,
		emailer:    cfg.Emailer,
		isNotFound: cfg.IsNotFound,
		logger:     cfg.Logger,
	}
}

// Notify runs the fan-out for one committed change event. Only the initial
// issue fetch is fatal; everything downstream is best-effort and surfaces
// through the summary counts and logs. The primary state mutation is
// already committed when this runs, so nothing here rolls back.
func (o *Orchestrator) Notify(ctx context.Context, event *sentinel.ChangeEvent) (Summary, error) {
	o.logger.Info("Processing change event",
		"issue_id", event.IssueID,
		"kind", event.Kind,
		"old_value", event.OldValue,
		"new_value", event.NewValue)

	issue, err := o.issues.Issue(ctx, event.IssueID)
	if err != nil {
		if o.isNotFound != nil && o.isNotFound(err) {
			return Summary{}, fmt.Errorf("%w: %s", ErrIssueNotFound, event.IssueID)
		}
		return Summary{}, fmt.Errorf("fetch issue: %w", err)
	}

	targets := o.resolver.Resolve(ctx, issue)
	if len(targets) == 0 {
		o.logger.Info("No recipients for event", "issue_id", event.IssueID)
		return Summary{}, nil
	}

	// Per-target work is independent; the only shared state is the
	// address de-duplication set and the counters, both behind one mutex.
	// The check-and-reserve happens before the provider call so parallel
	// targets sharing an address can't both send.
	var (
		mu      sync.Mutex
		summary Summary
		sent    = make(map[string]bool)
		wg      sync.WaitGroup
	)

	for i := range targets {
		target := &targets[i]

		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := o.writer.Write(ctx, event, issue, target); err != nil {
				o.logger.Warn("Failed to create notification record",
					"issue_id", issue.ID, "user_id", target.UserID, "error", err)
			} else {
				mu.Lock()
				summary.NotificationsCreated++
				mu.Unlock()
			}

			if target.Email == "" || !target.WantsEmail {
				return
			}

			addr := strings.ToLower(strings.TrimSpace(target.Email))
			mu.Lock()
			if sent[addr] {
				mu.Unlock()
				o.logger.Debug("Skipping duplicate email address",
					"issue_id", issue.ID, "user_id", target.UserID)
				return
			}
			sent[addr] = true
			mu.Unlock()

			attempt, err := o.emailer.Dispatch(ctx, event, issue, target)
			switch {
			case err != nil:
				o.logger.Warn("Failed to send notification email",
					"issue_id", issue.ID, "user_id", target.UserID, "error", err)
			case attempt != nil:
				mu.Lock()
				summary.EmailsSent++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	o.logger.Info("Change event processed",
		"issue_id", issue.ID,
		"targets", len(targets),
		"notifications_created", summary.NotificationsCreated,
		"emails_sent", summary.EmailsSent)

	return summary, nil
}
