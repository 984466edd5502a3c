package transport

import "errors"

// Sentinel kinds for transport configuration errors.
var (
	ErrNoBaseURL  = errors.New("transport base url not configured")
	ErrNilRequest = errors.New("transport request is nil")
)
