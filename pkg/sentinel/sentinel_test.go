package sentinel

import "testing"

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{StatusPending, "Pending"},
		{StatusInProgress, "In Progress"},
		{StatusResolved, "Resolved"},
		{StatusWithdrawn, "Withdrawn"},
		{"escalated", "escalated"}, // unknown values pass through
	}

	for _, tt := range tests {
		if got := StatusLabel(tt.status); got != tt.want {
			t.Errorf("StatusLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestVerificationLabel(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{VerificationPending, "Pending Verification"},
		{VerificationVerified, "Verified"},
		{VerificationInvalid, "Invalid"},
		{VerificationSpam, "Spam"},
		{"", "None"}, // first verification has no prior value
		{"escalated", "escalated"},
	}

	for _, tt := range tests {
		if got := VerificationLabel(tt.status); got != tt.want {
			t.Errorf("VerificationLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestChangeEventType(t *testing.T) {
	tests := []struct {
		name  string
		event ChangeEvent
		want  string
	}{
		{"status change", ChangeEvent{Kind: KindStatus, NewValue: StatusResolved}, "status_resolved"},
		{"verification change", ChangeEvent{Kind: KindVerification, NewValue: VerificationVerified}, "verification_verified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Type(); got != tt.want {
				t.Errorf("Type() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProfileWantsEmail(t *testing.T) {
	yes := true
	no := false

	tests := []struct {
		name    string
		profile *Profile
		want    bool
	}{
		{"nil profile defaults to wanting email", nil, true},
		{"unset preference defaults to wanting email", &Profile{UserID: "u1"}, true},
		{"explicit opt-in", &Profile{UserID: "u1", NotificationEmail: &yes}, true},
		{"explicit opt-out", &Profile{UserID: "u1", NotificationEmail: &no}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.WantsEmail(); got != tt.want {
				t.Errorf("WantsEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}
