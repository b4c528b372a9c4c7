package message

import "errors"

// Sentinel errors for the scheduled message store.
var (
	ErrNotFound          = errors.New("scheduled message not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotCancellable    = errors.New("only pending messages can be cancelled")
	ErrDuplicate         = errors.New("message already scheduled for this event")
	ErrNoRecipient       = errors.New("recipient needs an email address or phone number")
	ErrEmptyBody         = errors.New("message body is empty")
)
