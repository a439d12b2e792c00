// Package sentinel contains the core domain types for the City Sentinel
// issue notification service.
package sentinel

import "time"

// Issue statuses as stored on the issue record.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusWithdrawn  = "withdrawn"
)

// Verification statuses as stored on the issue record.
const (
	VerificationPending  = "pending_verification"
	VerificationVerified = "verified"
	VerificationInvalid  = "invalid"
	VerificationSpam     = "spam"
)

// ChangeKind distinguishes the two families of issue state changes.
type ChangeKind string

const (
	KindStatus       ChangeKind = "status"
	KindVerification ChangeKind = "verification"
)

// Role describes why a user receives a notification.
type Role string

const (
	RoleOwner    Role = "owner"    // The reporter of the issue
	RoleFollower Role = "follower" // A user following the issue
)

// IssueSnapshot is a read-only view of an issue, fetched once per
// notification run.
type IssueSnapshot struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Address       string `json:"address,omitempty"`
	ReporterID    string `json:"reporter_id,omitempty"`
	ReporterEmail string `json:"reporter_email,omitempty"`
}

// ChangeEvent describes a single committed status or verification change.
// The caller owns audit history; events are never persisted here.
type ChangeEvent struct {
	IssueID      string     `json:"issue_id"`
	Kind         ChangeKind `json:"kind"`
	OldValue     string     `json:"old_value"` // Empty for first verification
	NewValue     string     `json:"new_value"`
	VerifierName string     `json:"verifier_name,omitempty"`
	VerifierRole string     `json:"verifier_role,omitempty"`
}

// Type returns the notification type tag for this event, e.g.
// "status_resolved" or "verification_verified".
func (e *ChangeEvent) Type() string {
	return string(e.Kind) + "_" + e.NewValue
}

// RecipientTarget is one deduplicated delivery target for a notification
// run. Computed fresh per run, never cached.
type RecipientTarget struct {
	UserID     string `json:"user_id"`
	Role       Role   `json:"role"`
	Email      string `json:"email,omitempty"` // Empty when unresolvable
	WantsEmail bool   `json:"wants_email"`     // Defaults true when unknown
}

// NotificationRecord is a durable in-app notification.
type NotificationRecord struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IssueID   string    `json:"issue_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"` // status_<value> or verification_<value>
	IsRead    bool      `json:"is_read"`
}

// Profile carries a user's notification preference.
type Profile struct {
	UserID            string `json:"user_id"`
	NotificationEmail *bool  `json:"notification_email,omitempty"` // nil means not set (wants email)
}

// WantsEmail reports whether the profile opts into email delivery.
// Absent preference defaults to true.
func (p *Profile) WantsEmail() bool {
	return p == nil || p.NotificationEmail == nil || *p.NotificationEmail
}

// EmailSendAttempt records one attempted email delivery within a run.
// Ephemeral: used only for aggregation and logging.
type EmailSendAttempt struct {
	To      string
	Subject string
	HTML    string
	Err     error
}

var statusLabels = map[string]string{
	StatusPending:    "Pending",
	StatusInProgress: "In Progress",
	StatusResolved:   "Resolved",
	StatusWithdrawn:  "Withdrawn",
}

var verificationLabels = map[string]string{
	VerificationPending:  "Pending Verification",
	VerificationVerified: "Verified",
	VerificationInvalid:  "Invalid",
	VerificationSpam:     "Spam",
}

// StatusLabel returns the human-readable label for an issue status.
// Unknown values pass through unchanged.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// VerificationLabel returns the human-readable label for a verification
// status. An empty value (no prior verification) labels as "None".
func VerificationLabel(status string) string {
	if status == "" {
		return "None"
	}
	if label, ok := verificationLabels[status]; ok {
		return label
	}
	return status
}

// Label returns the label for a value of the given change kind.
func Label(kind ChangeKind, value string) string {
	if kind == KindVerification {
		return VerificationLabel(value)
	}
	return StatusLabel(value)
}
