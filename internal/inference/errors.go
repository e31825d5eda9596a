package inference

import (
	"errors"
	"fmt"
)

// errorLabel prefixes every RequestError message.
const errorLabel = "error calling chat inference"

type ErrorKind string

const (
	KindSession ErrorKind = "session"
	KindHTTP    ErrorKind = "http"
	KindNetwork ErrorKind = "network"
	KindParse   ErrorKind = "parse"
	KindInput   ErrorKind = "input"
)

// RequestError is the single error type returned by Send.
type RequestError struct {
	Kind ErrorKind
	// Status is set for KindHTTP.
	Status int
	Msg    string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", errorLabel, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", errorLabel, e.Msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

func sessionError(err error) *RequestError {
	if err == nil {
		return &RequestError{Kind: KindSession, Msg: "no active session"}
	}
	return &RequestError{Kind: KindSession, Msg: "session lookup failed", Err: err}
}

func httpError(status int, serverMsg string) *RequestError {
	if serverMsg != "" {
		return &RequestError{Kind: KindHTTP, Status: status, Msg: serverMsg}
	}
	return &RequestError{Kind: KindHTTP, Status: status, Msg: fmt.Sprintf("unexpected status %d", status)}
}

func networkError(err error) *RequestError {
	return &RequestError{Kind: KindNetwork, Msg: "request failed", Err: err}
}

func parseError(msg string, err error) *RequestError {
	return &RequestError{Kind: KindParse, Msg: msg, Err: err}
}

// KindOf returns the kind of a RequestError anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsNoSession reports whether err means no authenticated session exists.
func IsNoSession(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == KindSession && re.Err == nil
}
