package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"city-sentinel/pkg/sentinel"
)

type fakeProvider struct {
	sends []sentinel.EmailSendAttempt
	err   error
}

func (f *fakeProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentinel.EmailSendAttempt{To: to, Subject: subject, HTML: htmlBody})
	return nil
}

func TestDispatchSendsRenderedEmail(t *testing.T) {
	provider := &fakeProvider{}
	s := New(provider, testLogger())

	issue := &sentinel.IssueSnapshot{ID: "i1", Title: "Pothole on Main St"}
	event := &sentinel.ChangeEvent{
		Kind:     sentinel.KindStatus,
		OldValue: sentinel.StatusPending,
		NewValue: sentinel.StatusResolved,
	}
	target := &sentinel.RecipientTarget{UserID: "u1", Role: sentinel.RoleOwner, Email: "u1@x.com"}

	attempt, err := s.Dispatch(context.Background(), event, issue, target)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if attempt == nil {
		t.Fatal("Dispatch() returned nil attempt on success")
	}

	if len(provider.sends) != 1 {
		t.Fatalf("provider received %d sends, want 1", len(provider.sends))
	}
	sent := provider.sends[0]
	if sent.To != "u1@x.com" {
		t.Errorf("to = %q", sent.To)
	}
	if sent.Subject != "Issue Status Updated: Resolved" {
		t.Errorf("subject = %q", sent.Subject)
	}
	if !strings.Contains(sent.HTML, "Pothole on Main St") {
		t.Error("body should include the issue title")
	}
}

func TestDispatchSubjects(t *testing.T) {
	issue := &sentinel.IssueSnapshot{ID: "i1", Title: "Graffiti on 5th Ave"}

	tests := []struct {
		name  string
		event *sentinel.ChangeEvent
		role  sentinel.Role
		want  string
	}{
		{
			name:  "owner status",
			event: &sentinel.ChangeEvent{Kind: sentinel.KindStatus, NewValue: sentinel.StatusInProgress},
			role:  sentinel.RoleOwner,
			want:  "Issue Status Updated: In Progress",
		},
		{
			name:  "owner verification",
			event: &sentinel.ChangeEvent{Kind: sentinel.KindVerification, NewValue: sentinel.VerificationVerified},
			role:  sentinel.RoleOwner,
			want:  "Issue Verification Updated: Verified",
		},
		{
			name:  "follower status",
			event: &sentinel.ChangeEvent{Kind: sentinel.KindStatus, NewValue: sentinel.StatusResolved},
			role:  sentinel.RoleFollower,
			want:  "Issue Update: Graffiti on 5th Ave",
		},
		{
			name:  "follower verification",
			event: &sentinel.ChangeEvent{Kind: sentinel.KindVerification, NewValue: sentinel.VerificationInvalid},
			role:  sentinel.RoleFollower,
			want:  "Verification Update: Graffiti on 5th Ave",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := subjectFor(tt.event, issue, tt.role); got != tt.want {
				t.Errorf("subjectFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatchMissingAddress(t *testing.T) {
	s := New(&fakeProvider{}, testLogger())

	event := &sentinel.ChangeEvent{Kind: sentinel.KindStatus, NewValue: sentinel.StatusResolved}
	issue := &sentinel.IssueSnapshot{ID: "i1", Title: "Pothole"}

	if _, err := s.Dispatch(context.Background(), event, issue, &sentinel.RecipientTarget{UserID: "u1"}); err == nil {
		t.Error("Dispatch() should fail for a target without an address")
	}
}

func TestDispatchMockMode(t *testing.T) {
	s := NewMock(testLogger())

	event := &sentinel.ChangeEvent{Kind: sentinel.KindStatus, NewValue: sentinel.StatusResolved}
	issue := &sentinel.IssueSnapshot{ID: "i1", Title: "Pothole"}
	target := &sentinel.RecipientTarget{UserID: "u1", Role: sentinel.RoleOwner, Email: "u1@x.com"}

	attempt, err := s.Dispatch(context.Background(), event, issue, target)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if attempt != nil {
		t.Error("mock mode should report a skipped delivery, not a sent one")
	}
}

func TestDispatchProviderFailure(t *testing.T) {
	s := New(&fakeProvider{err: errors.New("rate limited")}, testLogger())

	event := &sentinel.ChangeEvent{Kind: sentinel.KindVerification, NewValue: sentinel.VerificationVerified}
	issue := &sentinel.IssueSnapshot{ID: "i1", Title: "Pothole"}
	target := &sentinel.RecipientTarget{UserID: "u1", Role: sentinel.RoleFollower, Email: "u1@x.com"}

	attempt, err := s.Dispatch(context.Background(), event, issue, target)
	if err == nil {
		t.Fatal("Dispatch() should surface the provider error")
	}
	if attempt == nil {
		t.Fatal("failed dispatch should still return the rendered attempt")
	}
	if attempt.Err == nil {
		t.Error("attempt should record the provider error")
	}
}
