package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"city-sentinel/notify"
	"city-sentinel/pkg/sentinel"
)

// statusChangeRequest is the body posted after an issue status mutation.
type statusChangeRequest struct {
	IssueID   string `json:"issue_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// verificationChangeRequest is the body posted after a verification
// mutation. OldStatus is null on the first verification.
type verificationChangeRequest struct {
	IssueID      string  `json:"issue_id"`
	OldStatus    *string `json:"old_status"`
	NewStatus    string  `json:"new_status"`
	VerifierName *string `json:"verifier_name"`
	VerifierRole *string `json:"verifier_role"`
}

type notifyResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	NotificationsCreated int    `json:"notifications_created"`
	EmailsSent           int    `json:"emails_sent"`
}

func (s *Server) handleStatusChange(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, "Empty request body")
		return
	}

	var req statusChangeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Warn("Invalid JSON in status change request", "error", err)
		s.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.IssueID == "" || req.NewStatus == "" {
		s.writeError(w, http.StatusBadRequest, "issue_id and new_status are required")
		return
	}

	event := &sentinel.ChangeEvent{
		IssueID:  req.IssueID,
		Kind:     sentinel.KindStatus,
		OldValue: req.OldStatus,
		NewValue: req.NewStatus,
	}

	s.runNotify(w, r, event, "Notifications sent")
}

func (s *Server) handleVerificationChange(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, "Empty request body")
		return
	}

	var req verificationChangeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Warn("Invalid JSON in verification change request", "error", err)
		s.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.IssueID == "" || req.NewStatus == "" {
		s.writeError(w, http.StatusBadRequest, "issue_id and new_status are required")
		return
	}

	event := &sentinel.ChangeEvent{
		IssueID:  req.IssueID,
		Kind:     sentinel.KindVerification,
		NewValue: req.NewStatus,
	}
	if req.OldStatus != nil {
		event.OldValue = *req.OldStatus
	}
	if req.VerifierName != nil {
		event.VerifierName = *req.VerifierName
	}
	if req.VerifierRole != nil {
		event.VerifierRole = *req.VerifierRole
	}

	s.runNotify(w, r, event, "Verification notifications sent")
}

// runNotify invokes the orchestrator and writes the summary. Partial
// fan-out failures are already swallowed into the summary; only a missing
// issue or an unreachable store surfaces as an error here.
func (s *Server) runNotify(w http.ResponseWriter, r *http.Request, event *sentinel.ChangeEvent, message string) {
	summary, err := s.notifier.Notify(r.Context(), event)
	if err != nil {
		if errors.Is(err, notify.ErrIssueNotFound) {
			s.writeError(w, http.StatusNotFound, "Issue not found")
			return
		}
		s.logger.Error("Notification run failed", "issue_id", event.IssueID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Notification run failed")
		return
	}

	s.writeJSON(w, http.StatusOK, notifyResponse{
		Success:              true,
		Message:              message,
		NotificationsCreated: summary.NotificationsCreated,
		EmailsSent:           summary.EmailsSent,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
