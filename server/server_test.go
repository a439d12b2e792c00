package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"city-sentinel/notify"
	"city-sentinel/pkg/sentinel"
)

type fakeNotifier struct {
	summary notify.Summary
	err     error
	event   *sentinel.ChangeEvent
}

func (f *fakeNotifier) Notify(_ context.Context, event *sentinel.ChangeEvent) (notify.Summary, error) {
	f.event = event
	return f.summary, f.err
}

func newTestServer(n Notifier) *Server {
	return New(&Config{
		Notifier: n,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestHandleStatusChange(t *testing.T) {
	notifier := &fakeNotifier{summary: notify.Summary{NotificationsCreated: 3, EmailsSent: 2}}
	srv := newTestServer(notifier)

	body := `{"issue_id":"i1","old_status":"pending","new_status":"resolved"}`
	req := httptest.NewRequest(http.MethodPost, "/notify/status-change", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp notifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Message != "Notifications sent" {
		t.Errorf("response = %+v", resp)
	}
	if resp.NotificationsCreated != 3 || resp.EmailsSent != 2 {
		t.Errorf("counts = %d/%d, want 3/2", resp.NotificationsCreated, resp.EmailsSent)
	}

	if notifier.event.Kind != sentinel.KindStatus {
		t.Errorf("event kind = %q, want status", notifier.event.Kind)
	}
	if notifier.event.IssueID != "i1" || notifier.event.OldValue != "pending" || notifier.event.NewValue != "resolved" {
		t.Errorf("event = %+v", notifier.event)
	}
}

func TestHandleVerificationChange(t *testing.T) {
	notifier := &fakeNotifier{summary: notify.Summary{NotificationsCreated: 1, EmailsSent: 1}}
	srv := newTestServer(notifier)

	body := `{"issue_id":"i1","old_status":null,"new_status":"verified","verifier_name":"Jane","verifier_role":"moderator"}`
	req := httptest.NewRequest(http.MethodPost, "/notify/verification-change", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp notifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Verification notifications sent" {
		t.Errorf("message = %q", resp.Message)
	}

	event := notifier.event
	if event.Kind != sentinel.KindVerification {
		t.Errorf("event kind = %q, want verification", event.Kind)
	}
	if event.OldValue != "" {
		t.Errorf("null old_status should map to empty, got %q", event.OldValue)
	}
	if event.VerifierName != "Jane" || event.VerifierRole != "moderator" {
		t.Errorf("verifier = %q/%q", event.VerifierName, event.VerifierRole)
	}
}

func TestHandleNotifyBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed JSON", `{"issue_id":`},
		{"missing issue_id", `{"new_status":"resolved"}`},
		{"missing new_status", `{"issue_id":"i1"}`},
	}

	for _, path := range []string{"/notify/status-change", "/notify/verification-change"} {
		for _, tt := range tests {
			t.Run(path+" "+tt.name, func(t *testing.T) {
				notifier := &fakeNotifier{}
				srv := newTestServer(notifier)

				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(tt.body))
				w := httptest.NewRecorder()
				srv.Handler().ServeHTTP(w, req)

				if w.Code != http.StatusBadRequest {
					t.Errorf("status = %d, want 400", w.Code)
				}
				if notifier.event != nil {
					t.Error("notifier should not run for a rejected request")
				}
			})
		}
	}
}

func TestHandleNotifyIssueNotFound(t *testing.T) {
	srv := newTestServer(&fakeNotifier{err: notify.ErrIssueNotFound})

	req := httptest.NewRequest(http.MethodPost, "/notify/status-change",
		strings.NewReader(`{"issue_id":"missing","new_status":"resolved"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Issue not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleNotifyInternalError(t *testing.T) {
	srv := newTestServer(&fakeNotifier{err: errors.New("store unreachable")})

	req := httptest.NewRequest(http.MethodPost, "/notify/status-change",
		strings.NewReader(`{"issue_id":"i1","new_status":"resolved"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestHandleNotifyMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeNotifier{})

	req := httptest.NewRequest(http.MethodGet, "/notify/status-change", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHandleNotifyCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeNotifier{})

	req := httptest.NewRequest(http.MethodOptions, "/notify/verification-change", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "authorization") {
		t.Errorf("allow-headers = %q", got)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeNotifier{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("body = %s", w.Body.String())
	}

	post := httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, post)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", w.Code)
	}
}
