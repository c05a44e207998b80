package notifier

import "errors"

var (
	ErrDuplicateNotification = errors.New("notification already registered")
	ErrInvalidNotification   = errors.New("invalid notification")
	ErrInvalidAddress        = errors.New("invalid email address")
	ErrClosed                = errors.New("notifier closed")
)
