// Package validation holds input validation rules shared by the service layer.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	groupNameMinLen      = 2
	groupNameMaxLen      = 80
	MessageContentMaxLen = 10000
)

// ValidateGroupName validates a group conversation's display name.
func ValidateGroupName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < groupNameMinLen {
		return fmt.Errorf("group name must be at least %d characters", groupNameMinLen)
	}
	if len(trimmed) > groupNameMaxLen {
		return fmt.Errorf("group name must be at most %d characters", groupNameMaxLen)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return fmt.Errorf("group name cannot contain control characters")
		}
	}
	return nil
}

// ValidateMessageContent validates text message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is required")
	}
	if len(content) > MessageContentMaxLen {
		return fmt.Errorf("message content too long (max %d characters)", MessageContentMaxLen)
	}
	return nil
}
