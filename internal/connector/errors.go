// Package connector implements the client-side Connection Sequence State
// Machine: an explicit Step function that walks Negotiation, Security
// Upgrade, MCS Basic Settings Exchange, Channel Connection, Secure
// Settings Exchange, Licensing, Capabilities Exchange, and Finalization,
// structured so no step blocks on its own I/O: every transition
// consumes one decoded frame and returns the bytes to send next. The
// only exception is the Security Upgrade phase: the connector yields
// EventSecurityUpgrade, the caller runs the TLS/CredSSP handshake on its
// own transport, because a TLS handshake has no meaningful sans-I/O
// decomposition (see internal/security/tls.go), and then resumes the
// sequence with UpgradeSecurity.
package connector

import "fmt"

// FailureKind classifies why a connection attempt failed, mirroring the
// taxonomy for the state machine (distinct from
// the codec's own DecodeError/EncodeError kinds).
type FailureKind int

const (
	FailureGeneral FailureKind = iota
	FailureWrongPassword
	FailureLogonFailure
	FailureAccessDenied
	FailureNegotiation
	FailureLicensing
	FailureCapabilities
	FailureSecurityUpgrade
	FailureCredssp
)

// String names a FailureKind for diagnostics.
func (k FailureKind) String() string {
	switch k {
	case FailureGeneral:
		return "General"
	case FailureWrongPassword:
		return "WrongPassword"
	case FailureLogonFailure:
		return "LogonFailure"
	case FailureAccessDenied:
		return "AccessDenied"
	case FailureNegotiation:
		return "Negotiation"
	case FailureLicensing:
		return "Licensing"
	case FailureCapabilities:
		return "Capabilities"
	case FailureSecurityUpgrade:
		return "SecurityUpgrade"
	case FailureCredssp:
		return "Credssp"
	default:
		return "Unknown"
	}
}

// Error is the single error type the connector ever returns, carrying a
// Kind plus a chain of context strings identifying which state produced
// it. It never embeds credential material: the context strings are
// state names and PDU names only.
type Error struct {
	kind    FailureKind
	context []string
	err     error
}

func newError(kind FailureKind, context string, err error) *Error {
	return &Error{kind: kind, context: []string{context}, err: err}
}

// annotate prepends a context frame (e.g. a state name) as the error
// bubbles up through the step function, without changing Kind.
func (e *Error) annotate(context string) *Error {
	return &Error{kind: e.kind, context: append([]string{context}, e.context...), err: e.err}
}

// Kind returns the failure taxonomy this error belongs to.
func (e *Error) Kind() FailureKind { return e.kind }

// Backtrace returns the chained context strings, newline-joined, with no
// credential material ever present since context frames are state/PDU
// names only.
func (e *Error) Backtrace() string {
	out := e.context[0]
	for _, c := range e.context[1:] {
		out += "\n" + c
	}
	return out
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("connector: %s: %s: %v", e.kind, e.context[0], e.err)
	}
	return fmt.Sprintf("connector: %s: %s", e.kind, e.context[0])
}

func (e *Error) Unwrap() error { return e.err }

// asError wraps any error in a connector.Error tagged with the current
// state name, unless it already is one (in which case it is annotated,
// never re-tagged with a new Kind): codec errors are annotated with
// the current state name and surfaced, not caught.
func asError(kind FailureKind, state string, err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*Error); ok {
		return ce.annotate(state)
	}
	return newError(kind, state, err)
}
