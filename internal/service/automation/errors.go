package automation

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the automation service layer.
var (
	ErrNotFound       = errors.New("automation not found")
	ErrInvalidCounter = errors.New("unknown analytics counter")
)

// ValidationError is returned when an automation definition is rejected.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Field              string   `json:"field"`
	Message            string   `json:"message"`
	InvalidPropertyIDs []string `json:"invalid_property_ids,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.InvalidPropertyIDs) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Message, strings.Join(e.InvalidPropertyIDs, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
