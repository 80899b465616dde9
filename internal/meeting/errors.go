package meeting

import (
	"errors"
)

var (
	ErrConnection = errors.New("connection error")
	ErrSend       = errors.New("send error")
	ErrReceive    = errors.New("receive error")
	ErrJSON       = errors.New("json error")
	ErrWebSocket  = errors.New("websocket error")
	ErrStopped    = errors.New("client stopped")
)

// clientError attaches one of the sentinel kinds above to a cause.
type clientError struct {
	kind error
	err  error
}

func wrap(kind, err error) error {
	return &clientError{kind: kind, err: err}
}

func (e *clientError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *clientError) Unwrap() error {
	return e.err
}

func (e *clientError) Is(target error) bool {
	return target == e.kind
}
