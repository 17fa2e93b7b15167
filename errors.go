package statsig

import (
	"errors"
	"fmt"
)

type StatsigError error

var (
	// ErrEmptyUserID is returned by every public operation when the user
	// has no ID.
	ErrEmptyUserID StatsigError = errors.New("statsig: a non-empty user ID is required")
	// ErrNetworkRequest matches any failed request to the control plane.
	ErrNetworkRequest StatsigError = errors.New("statsig: failed network request")
	// ErrDecodeResponse matches any response body that could not be decoded
	// into the caller's shape.
	ErrDecodeResponse StatsigError = errors.New("statsig: failed to decode response")
)

type RequestMetadata struct {
	StatusCode int
	Endpoint   string
}

// TransportError wraps a network or non-2xx failure with request metadata.
type TransportError struct {
	RequestMetadata *RequestMetadata
	Err             error
}

func (e *TransportError) Error() string {
	if e.RequestMetadata != nil {
		return fmt.Sprintf("failed request to %s (status %d): %s",
			e.RequestMetadata.Endpoint, e.RequestMetadata.StatusCode, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrNetworkRequest }

// DecodeError wraps a JSON decoding failure on a response body.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %s", e.Err.Error())
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecodeResponse }
