package checkout

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Draft holds the traveller details collected before submission.
type Draft struct {
	FullName        string
	Email           string
	Phone           string
	SpecialRequests string
}

// Validate checks the draft fields and returns a ValidationError listing
// every problem, or nil when the draft is complete.
func (d *Draft) Validate() *ValidationError {
	fields := map[string]string{}
	if strings.TrimSpace(d.FullName) == "" {
		fields["full_name"] = "full name is required"
	}
	if strings.TrimSpace(d.Email) == "" {
		fields["email"] = "email is required"
	} else if !emailPattern.MatchString(d.Email) {
		fields["email"] = "email is not a valid address"
	}
	if strings.TrimSpace(d.Phone) == "" {
		fields["phone"] = "phone number is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
