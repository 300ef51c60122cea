package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGroupName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "Food Bank Crew", false},
		{"minimum length", "ab", false},
		{"trimmed before checking", "  ab  ", false},
		{"too short", "a", true},
		{"blank", "   ", true},
		{"max length", strings.Repeat("x", 80), false},
		{"too long", strings.Repeat("x", 81), true},
		{"control characters", "bad\x00name", true},
		{"newline", "two\nlines", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGroupName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "hello", false},
		{"empty", "", true},
		{"whitespace only", " \t\n ", true},
		{"max length", strings.Repeat("x", MessageContentMaxLen), false},
		{"too long", strings.Repeat("x", MessageContentMaxLen+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageContent(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
