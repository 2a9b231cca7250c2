package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies fetch failures.
type Kind int

// Fetch failure kinds.
const (
	KindNetwork Kind = iota + 1
	KindEmptyResponse
	KindInvalidPayload
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindEmptyResponse:
		return "empty response"
	case KindInvalidPayload:
		return "invalid payload"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinel errors usable with errors.Is against an *Error.
var (
	ErrNetwork        = errors.New("network")
	ErrEmptyResponse  = errors.New("empty response")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Error is returned by Fetch and Parse.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrEmptyResponse:
		return e.Kind == KindEmptyResponse
	case ErrInvalidPayload:
		return e.Kind == KindInvalidPayload
	}
	return false
}
