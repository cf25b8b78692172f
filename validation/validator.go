// Package validation provides input validation for the perfusion API.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/perfusionpro/perfusion-api/interfaces"
)

// Pre-compiled regex patterns for performance optimization
// Compiled once at package initialization and reused for all validations
var (
	// Input validation: alphanumeric + safe punctuation used in clinical names
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+',/()]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	// strings.Contains is 5-10x faster than regex for these patterns
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// LDAP injection patterns
		"*)(", "*|(", "*)%",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// InputValidatorImpl implements the interfaces.InputValidator interface
type InputValidatorImpl struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() interfaces.InputValidator {
	return &InputValidatorImpl{}
}

// ValidateQuery validates hospital search queries
func (v *InputValidatorImpl) ValidateQuery(query string) error {
	// An empty query means "no filter" and is always valid
	if strings.TrimSpace(query) == "" {
		return nil
	}

	if len(query) > 100 {
		return fmt.Errorf("query too long: maximum 100 characters")
	}

	// Word count validation to prevent DoS attacks with many short words
	words := strings.Fields(query)
	if len(words) > 8 {
		return fmt.Errorf("search query too complex: maximum 8 words allowed")
	}

	if err := v.checkDangerous(query); err != nil {
		return err
	}

	if !inputRegex.MatchString(query) {
		return fmt.Errorf("query contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods, commas, slashes and parentheses are allowed")
	}

	if hasExcessiveRepetition(query) {
		return fmt.Errorf("query contains excessive character repetition")
	}

	return nil
}

// ValidateName validates free-text names (medications, personnel, surgeons)
func (v *InputValidatorImpl) ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if len(name) > 120 {
		return fmt.Errorf("name too long: maximum 120 characters")
	}

	if err := v.checkDangerous(name); err != nil {
		return err
	}

	if !inputRegex.MatchString(name) {
		return fmt.Errorf("name contains invalid characters")
	}

	if hasExcessiveRepetition(name) {
		return fmt.Errorf("name contains excessive character repetition")
	}

	return nil
}

// ValidateReason validates hold/stop reason text. Reasons may be empty:
// stopping with no reason marks an infusion completed rather than stopped.
func (v *InputValidatorImpl) ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return nil
	}

	if len(reason) > 250 {
		return fmt.Errorf("reason too long: maximum 250 characters")
	}

	if err := v.checkDangerous(reason); err != nil {
		return err
	}

	if hasExcessiveRepetition(reason) {
		return fmt.Errorf("reason contains excessive character repetition")
	}

	return nil
}

// checkDangerous rejects input matching known injection patterns using
// string matching (5-10x faster than regex)
func (v *InputValidatorImpl) checkDangerous(input string) error {
	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}
	return nil
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func hasExcessiveRepetition(input string) bool {
	// Check for the same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
