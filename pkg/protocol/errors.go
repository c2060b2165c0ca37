package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies request failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindURL
	KindNetwork
	KindTimeout
	KindTLS
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindTLS:
		return "tls"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// TimeoutPhase tells which deadline expired for a KindTimeout error.
type TimeoutPhase int

const (
	PhaseNone TimeoutPhase = iota
	// PhaseConnection covers resolution, connect and the TLS handshake.
	PhaseConnection
	// PhaseRequest covers writing the request.
	PhaseRequest
	// PhaseResponse covers reading the response.
	PhaseResponse
)

func (p TimeoutPhase) String() string {
	switch p {
	case PhaseConnection:
		return "connection"
	case PhaseRequest:
		return "request"
	case PhaseResponse:
		return "response"
	default:
		return "none"
	}
}

// Error is returned by every failing request.
type Error struct {
	Kind  ErrorKind
	Phase TimeoutPhase
	Msg   string
	Err   error
}

// Sentinels for errors.Is. ErrTimeout matches timeouts of any phase.
var (
	ErrURL     = &Error{Kind: KindURL}
	ErrNetwork = &Error{Kind: KindNetwork}
	ErrTimeout = &Error{Kind: KindTimeout}
	ErrTLS     = &Error{Kind: KindTLS}
	ErrParse   = &Error{Kind: KindParse}

	ErrConnectTimeout  = &Error{Kind: KindTimeout, Phase: PhaseConnection}
	ErrRequestTimeout  = &Error{Kind: KindTimeout, Phase: PhaseRequest}
	ErrResponseTimeout = &Error{Kind: KindTimeout, Phase: PhaseResponse}
)

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Kind == KindTimeout && e.Phase != PhaseNone {
		prefix = fmt.Sprintf("%s timeout", e.Phase)
	}

	msg := e.Msg
	if msg == "" {
		msg = "request failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target without a phase
// matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Phase == PhaseNone || t.Phase == e.Phase
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PhaseOf returns the timeout phase of err, or PhaseNone.
func PhaseOf(err error) TimeoutPhase {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindTimeout {
		return e.Phase
	}
	return PhaseNone
}

// IsTimeout reports whether err is a timeout of any phase.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func timeoutError(phase TimeoutPhase, msg string) *Error {
	return &Error{Kind: KindTimeout, Phase: phase, Msg: msg}
}
