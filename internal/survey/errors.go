package survey

import (
	"errors"
	"fmt"
)

// Field update and submit errors.
var (
	ErrUnknownField     = errors.New("unknown field")
	ErrUnknownOption    = errors.New("value is not one of the field's options")
	ErrNotChoiceField   = errors.New("field does not take a choice")
	ErrChoiceField      = errors.New("field only accepts one of its options")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrRejected         = errors.New("submission rejected by endpoint")
	ErrTransport        = errors.New("submission could not be delivered")
)

// Group names the section of the form a validation failure belongs to.
type Group string

const (
	GroupChoice  Group = "choice_questions"
	GroupText    Group = "text_questions"
	GroupProfile Group = "profile"
)

// ValidationError reports the first incomplete section found at submit time.
type ValidationError struct {
	Group   Group
	Message string
	// Fields lists the incomplete keys of the group, in form order.
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("incomplete %s: %v", e.Group, e.Fields)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
