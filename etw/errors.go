package etw

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when a provider name or GUID is not registered
	// on the system.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrSessionExists matches *ExistsError.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound matches *NotFoundError.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMissingParameter is returned when a required argument is empty.
	ErrMissingParameter = errors.New("missing required parameter")
	// ErrNoProviders is returned by StartSession when no provider config is enabled.
	ErrNoProviders = errors.New("no enabled providers")
	// ErrNoKeywords is returned for providers that publish no keyword metadata.
	ErrNoKeywords = errors.New("provider has no keywords")
	// ErrNotSupported is returned by every OS backed call outside 64-bit Windows.
	ErrNotSupported = errors.New("etw is not supported on this platform")
)

// ExistsError is returned by StartSession if the session name is already taken.
// The running session is left untouched; stop it first to reuse the name:
//
//	var exists *etw.ExistsError
//	_, err := etw.StartSession(name, out, providers)
//	if errors.As(err, &exists) {
//		_, err = etw.StopSession(exists.SessionName)
//	}
type ExistsError struct{ SessionName string }

func (e *ExistsError) Error() string {
	return fmt.Sprintf("session %q already exists", e.SessionName)
}

// Is makes errors.Is(err, ErrSessionExists) hold.
func (e *ExistsError) Is(target error) bool { return target == ErrSessionExists }

// NotFoundError is returned when no running session has the given name.
type NotFoundError struct{ SessionName string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionName)
}

// Is makes errors.Is(err, ErrSessionNotFound) hold.
func (e *NotFoundError) Is(target error) bool { return target == ErrSessionNotFound }

func missing(param string) error {
	return fmt.Errorf("%w: %s", ErrMissingParameter, param)
}
