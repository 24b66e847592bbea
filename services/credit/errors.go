package credit

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCreditCourse         = errors.New("course is not configured for credit")
	ErrCreditProviderNotFound      = errors.New("credit provider not found")
	ErrCreditProviderNotConfigured = errors.New("credit provider is not configured for this course")
	ErrUserIsNotEligible           = errors.New("user is not eligible for credit")
	ErrRequestAlreadyCompleted     = errors.New("credit request has already been completed")
	ErrInvalidCreditStatus         = errors.New("invalid credit request status")
	ErrCreditRequestNotFound       = errors.New("credit request not found")
	ErrInvalidRequirementStatus    = errors.New("invalid credit requirement status")
	ErrRequirementNotFound         = errors.New("credit requirement not found")
)

// InvalidCreditRequirementsError lists every malformed entry of a
// requirement set.
type InvalidCreditRequirementsError struct {
	Messages []string
}

func (e *InvalidCreditRequirementsError) Error() string {
	return "invalid credit requirements: " + strings.Join(e.Messages, ", ")
}
