package email

import "testing"

func TestSanitizeEmailHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain address", "user@x.com", "user@x.com"},
		{"strips CRLF injection", "user@x.com\r\nBcc: evil@x.com", "user@x.comBcc: evil@x.com"},
		{"strips bare newline", "Subject line\ninjected", "Subject lineinjected"},
		{"strips DEL", "user\x7f@x.com", "user@x.com"},
		{"keeps unicode", "Héllo Wörld", "Héllo Wörld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeEmailHeader(tt.input); got != tt.want {
				t.Errorf("sanitizeEmailHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
