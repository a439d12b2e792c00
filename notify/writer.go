package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"city-sentinel/pkg/sentinel"

	"github.com/google/uuid"
)

// NotificationStore interface for persisting in-app notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, rec *sentinel.NotificationRecord) error
}

// Writer creates one durable in-app notification record per target.
type Writer struct {
	store  NotificationStore
	logger *slog.Logger
}

// NewWriter creates a new notification writer.
func NewWriter(store NotificationStore, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger,
	}
}

// Write builds the title and message for one recipient and inserts the
// record. Not idempotent across whole-run retries; the orchestration runs
// at most once per mutation.
func (w *Writer) Write(ctx context.Context, event *sentinel.ChangeEvent, issue *sentinel.IssueSnapshot, target *sentinel.RecipientTarget) (*sentinel.NotificationRecord, error) {
	rec := &sentinel.NotificationRecord{
		ID:        uuid.NewString(),
		UserID:    target.UserID,
		IssueID:   issue.ID,
		Title:     notificationTitle(event, target.Role),
		Message:   notificationMessage(event, issue, target.Role),
		Type:      event.Type(),
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.store.InsertNotification(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return rec, nil
}

func notificationTitle(event *sentinel.ChangeEvent, role sentinel.Role) string {
	if role == sentinel.RoleFollower {
		if event.Kind == sentinel.KindVerification {
			return "Issue You Follow - Verification Update"
		}
		return "Issue You Follow Updated"
	}
	if event.Kind == sentinel.KindVerification {
		return fmt.Sprintf("Issue Verification Updated: %s", sentinel.VerificationLabel(event.NewValue))
	}
	return fmt.Sprintf("Issue Status Updated: %s", sentinel.StatusLabel(event.NewValue))
}

func notificationMessage(event *sentinel.ChangeEvent, issue *sentinel.IssueSnapshot, role sentinel.Role) string {
	newLabel := sentinel.Label(event.Kind, event.NewValue)
	oldLabel := sentinel.Label(event.Kind, event.OldValue)

	if event.Kind == sentinel.KindVerification {
		if role == sentinel.RoleOwner {
			msg := fmt.Sprintf("Your issue %q has been %s", issue.Title, strings.ToLower(newLabel))
			if event.VerifierRole != "" {
				msg += fmt.Sprintf(" by a %s", event.VerifierRole)
			}
			return msg + "."
		}
		return fmt.Sprintf("Issue %q verification status changed from %s to %s.", issue.Title, oldLabel, newLabel)
	}

	if role == sentinel.RoleOwner {
		return fmt.Sprintf("Your issue %q has been updated from %s to %s.", issue.Title, oldLabel, newLabel)
	}
	return fmt.Sprintf("Issue %q has been updated from %s to %s.", issue.Title, oldLabel, newLabel)
}
