package notifier

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTimeout indicates the webhook did not answer within the timeout.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("webhook timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates the webhook host could not be reached.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("webhook connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrCanceled indicates the caller gave up before the webhook answered.
type ErrCanceled struct {
	Err error
}

func (e ErrCanceled) Error() string {
	return fmt.Errorf("webhook canceled: %w", e.Err).Error()
}

func (e ErrCanceled) Unwrap() error {
	return e.Err
}

// ErrStatus indicates the webhook answered with a code other than 200.
type ErrStatus struct {
	Code int
	Err  error
}

func (e ErrStatus) Error() string {
	text := http.StatusText(e.Code)
	if text == "" {
		text = "unexpected status"
	}
	return fmt.Sprintf("webhook returned HTTP %d: %s", e.Code, text)
}

func (e ErrStatus) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var canceled ErrCanceled
	if errors.As(err, &canceled) {
		return "canceled"
	}
	var status ErrStatus
	if errors.As(err, &status) {
		switch {
		case status.Code >= 500:
			return "server_error"
		case status.Code >= 400:
			return "client_error"
		default:
			return "unexpected_status"
		}
	}
	return "other"
}
