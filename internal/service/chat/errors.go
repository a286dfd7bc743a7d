package chat

import (
	"errors"
	"fmt"
)

var ErrEmptyMessage = errors.New("chat: message text is required")

// ConfigError reports a missing or invalid credential. The session stays
// usable; the caller shows the message and waits for the next input.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("chat: config error (%s)", e.Reason)
}

// ServiceError wraps any failure of the remote generation service.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("chat: service error during %s", e.Op)
	}
	return fmt.Sprintf("chat: service error during %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// IsServiceError reports whether err carries a *ServiceError.
func IsServiceError(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}

// Notice returns the user-facing text for an error returned by Submit.
func Notice(err error) string {
	var (
		cfgErr *ConfigError
		svcErr *ServiceError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyMessage):
		return "Message text is required."
	case errors.As(err, &cfgErr):
		return "API key not found. Add it to the server environment and try again."
	case errors.As(err, &svcErr) && svcErr.Op == "initialize":
		return fmt.Sprintf("Failed to initialize the model: %v", svcErr.Err)
	case errors.As(err, &svcErr):
		return fmt.Sprintf("An error occurred: %v", svcErr.Err)
	default:
		return "An unexpected error occurred."
	}
}
