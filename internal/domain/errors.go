// internal/domain/errors.go
package domain

import "errors"

var (
	// ErrNoWorkersAvailable is reported when a tick finds an empty directory.
	// It is an expected state while workers are still joining.
	ErrNoWorkersAvailable = errors.New("no workers available")

	// ErrRequestTimeout marks a job whose reply did not arrive before its deadline.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrUnmatchedReply marks a reply that no longer belongs to a pending request.
	ErrUnmatchedReply = errors.New("reply does not match a pending request")

	// ErrAlreadySubscribed is returned when a directory is subscribed twice.
	ErrAlreadySubscribed = errors.New("directory already subscribed")

	// ErrInvalidRequest is returned when a wire request cannot be decoded.
	ErrInvalidRequest = errors.New("invalid job request")
)
