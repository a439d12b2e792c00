package email

import (
	"fmt"
	"strings"

	"city-sentinel/pkg/sentinel"
)

// maxDescriptionChars limits how much of the issue description appears in
// an email body.
const maxDescriptionChars = 150

type templateKey struct {
	kind sentinel.ChangeKind
	role sentinel.Role
}

type renderFunc func(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent) string

// bodyTemplates selects the email body renderer by event kind and recipient
// role. Followers get a "you are following this issue" banner and
// third-person copy; owners are addressed directly.
var bodyTemplates = map[templateKey]renderFunc{
	{kind: sentinel.KindStatus, role: sentinel.RoleOwner}: func(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent) string {
		return statusBody(issue, event, false)
	},
	{kind: sentinel.KindStatus, role: sentinel.RoleFollower}: func(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent) string {
		return statusBody(issue, event, true)
	},
	{kind: sentinel.KindVerification, role: sentinel.RoleOwner}: func(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent) string {
		return verificationBody(issue, event, false)
	},
	{kind: sentinel.KindVerification, role: sentinel.RoleFollower}: func(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent) string {
		return verificationBody(issue, event, true)
	},
}

// statusBody renders the status-change email. Badge colors are fixed per
// status: pending amber, in_progress blue, resolved green, withdrawn gray.
func statusBody(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent, follower bool) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0; }\n")
	b.WriteString(".container { max-width: 600px; margin: 0 auto; padding: 20px; }\n")
	b.WriteString(".header { background: linear-gradient(135deg, #2563eb, #3b82f6); color: white; padding: 30px; border-radius: 12px 12px 0 0; text-align: center; }\n")
	b.WriteString(".content { background: #f8fafc; padding: 30px; border-radius: 0 0 12px 12px; }\n")
	b.WriteString(".status-badge { display: inline-block; padding: 8px 16px; border-radius: 20px; font-weight: 600; margin: 10px 0; }\n")
	b.WriteString(".status-pending { background: #fef3c7; color: #92400e; }\n")
	b.WriteString(".status-in_progress { background: #dbeafe; color: #1e40af; }\n")
	b.WriteString(".status-resolved { background: #d1fae5; color: #065f46; }\n")
	b.WriteString(".status-withdrawn { background: #f3f4f6; color: #374151; }\n")
	b.WriteString(".status-arrow { color: #6b7280; margin: 0 8px; }\n")
	b.WriteString(".issue-card { background: white; border-radius: 8px; padding: 20px; margin: 20px 0; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }\n")
	b.WriteString(".footer { text-align: center; color: #6b7280; font-size: 14px; margin-top: 20px; }\n")
	b.WriteString(".follower-note { background: #eff6ff; border-left: 4px solid #3b82f6; padding: 12px; margin: 15px 0; border-radius: 0 8px 8px 0; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"container\">\n")
	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h1 style=\"margin: 0; font-size: 24px;\">City Sentinel</h1>\n")
	b.WriteString("<p style=\"margin: 10px 0 0; opacity: 0.9;\">Issue Status Update</p>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	if follower {
		writeFollowerNote(&b)
		b.WriteString("<h2 style=\"margin-top: 0;\">An issue you follow has been updated!</h2>\n")
	} else {
		b.WriteString("<h2 style=\"margin-top: 0;\">Your issue has been updated!</h2>\n")
	}

	writeIssueCardOpen(&b, issue)
	b.WriteString("<p><strong>Status:</strong></p>\n")
	if event.OldValue != "" {
		writeStatusBadge(&b, event.OldValue, sentinel.StatusLabel(event.OldValue))
		b.WriteString("<span class=\"status-arrow\">&rarr;</span>\n")
	}
	writeStatusBadge(&b, event.NewValue, sentinel.StatusLabel(event.NewValue))
	b.WriteString("</div>\n")

	b.WriteString("<p>Thank you for helping improve our city! We appreciate your patience and engagement.</p>\n")
	b.WriteString("</div>\n")

	writeFooter(&b)
	b.WriteString("</div>\n</body>\n</html>")

	return b.String()
}

// verificationBody renders the verification-change email. Badge colors:
// pending_verification amber, verified green, invalid red, spam gray.
func verificationBody(issue *sentinel.IssueSnapshot, event *sentinel.ChangeEvent, follower bool) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0; }\n")
	b.WriteString(".container { max-width: 600px; margin: 0 auto; padding: 20px; }\n")
	b.WriteString(".header { background: linear-gradient(135deg, #7c3aed, #8b5cf6); color: white; padding: 30px; border-radius: 12px 12px 0 0; text-align: center; }\n")
	b.WriteString(".content { background: #f8fafc; padding: 30px; border-radius: 0 0 12px 12px; }\n")
	b.WriteString(".status-badge { display: inline-block; padding: 8px 16px; border-radius: 20px; font-weight: 600; margin: 10px 0; }\n")
	b.WriteString(".status-pending_verification { background: #fef3c7; color: #92400e; }\n")
	b.WriteString(".status-verified { background: #d1fae5; color: #065f46; }\n")
	b.WriteString(".status-invalid { background: #fee2e2; color: #991b1b; }\n")
	b.WriteString(".status-spam { background: #f3f4f6; color: #374151; }\n")
	b.WriteString(".issue-card { background: white; border-radius: 8px; padding: 20px; margin: 20px 0; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }\n")
	b.WriteString(".footer { text-align: center; color: #6b7280; font-size: 14px; margin-top: 20px; }\n")
	b.WriteString(".follower-note { background: #f3e8ff; border-left: 4px solid #7c3aed; padding: 12px; margin: 15px 0; border-radius: 0 8px 8px 0; }\n")
	b.WriteString(".verifier-info { background: #ede9fe; padding: 10px 15px; border-radius: 6px; margin: 10px 0; font-size: 14px; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"container\">\n")
	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h1 style=\"margin: 0; font-size: 24px;\">City Sentinel</h1>\n")
	b.WriteString("<p style=\"margin: 10px 0 0; opacity: 0.9;\">Issue Verification Update</p>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	if follower {
		writeFollowerNote(&b)
		b.WriteString("<h2 style=\"margin-top: 0;\">An issue you follow has been verified!</h2>\n")
	} else {
		b.WriteString("<h2 style=\"margin-top: 0;\">Your issue verification status has changed!</h2>\n")
	}

	writeIssueCardOpen(&b, issue)
	b.WriteString("<p><strong>Verification Status:</strong></p>\n")
	writeStatusBadge(&b, event.NewValue, sentinel.VerificationLabel(event.NewValue))

	if event.VerifierName != "" || event.VerifierRole != "" {
		name := event.VerifierName
		if name == "" {
			name = "Unknown"
		}
		b.WriteString("<div class=\"verifier-info\">\n")
		b.WriteString(fmt.Sprintf("<strong>Verified by:</strong> %s", escapeHTML(name)))
		if event.VerifierRole != "" {
			b.WriteString(fmt.Sprintf(" (%s)", escapeHTML(event.VerifierRole)))
		}
		b.WriteString("\n</div>\n")
	}
	b.WriteString("</div>\n")

	b.WriteString("<p>Thank you for helping improve our city! We appreciate your engagement.</p>\n")
	b.WriteString("</div>\n")

	writeFooter(&b)
	b.WriteString("</div>\n</body>\n</html>")

	return b.String()
}

func writeFollowerNote(b *strings.Builder) {
	b.WriteString("<div class=\"follower-note\">\n")
	b.WriteString("<strong>You're following this issue</strong>\n")
	b.WriteString("<p style=\"margin: 5px 0 0; font-size: 14px;\">You're receiving this because you're following this issue.</p>\n")
	b.WriteString("</div>\n")
}

func writeIssueCardOpen(b *strings.Builder, issue *sentinel.IssueSnapshot) {
	b.WriteString("<div class=\"issue-card\">\n")
	b.WriteString(fmt.Sprintf("<h3 style=\"margin-top: 0;\">%s</h3>\n", escapeHTML(issue.Title)))
	b.WriteString(fmt.Sprintf("<p style=\"color: #6b7280; margin-bottom: 15px;\">%s</p>\n", escapeHTML(truncate(issue.Description, maxDescriptionChars))))
	if issue.Address != "" {
		b.WriteString(fmt.Sprintf("<p style=\"font-size: 14px; color: #6b7280;\">%s</p>\n", escapeHTML(issue.Address)))
	}
}

func writeStatusBadge(b *strings.Builder, value, label string) {
	b.WriteString(fmt.Sprintf("<span class=\"status-badge status-%s\">%s</span>\n", escapeHTML(value), escapeHTML(label)))
}

func writeFooter(b *strings.Builder) {
	b.WriteString("<div class=\"footer\">\n")
	b.WriteString("<p>City Sentinel - Making our city better, together</p>\n")
	b.WriteString("<p style=\"font-size: 12px; color: #9ca3af;\">You can manage your notification preferences in your profile settings.</p>\n")
	b.WriteString("</div>\n")
}

// truncate shortens a description to at most n runes, appending an ellipsis
// when anything was cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
