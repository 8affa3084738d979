package security

import "errors"

// Sentinel failure kinds for the Security Upgrade phase, distinguished
// so internal/connector can map them to its own FailureKind without
// string-matching error text.
var (
	ErrWrongPassword = errors.New("security: wrong password")
	ErrLogonFailure  = errors.New("security: logon failure")
	ErrAccessDenied  = errors.New("security: access denied")
)
