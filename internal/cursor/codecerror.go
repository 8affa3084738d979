package cursor

import "fmt"

// DecodeErrorKind classifies why a PDU's Decode failed: not enough
// bytes, an invalid field, an unexpected message type, an unsupported
// version, or an uncategorized cause.
type DecodeErrorKind int

const (
	KindNotEnoughBytes DecodeErrorKind = iota
	KindInvalidField
	KindUnexpectedMessageType
	KindUnsupportedVersion
	KindOther
)

func (k DecodeErrorKind) String() string {
	switch k {
	case KindNotEnoughBytes:
		return "NotEnoughBytes"
	case KindInvalidField:
		return "InvalidField"
	case KindUnexpectedMessageType:
		return "UnexpectedMessageType"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	default:
		return "Other"
	}
}

// DecodeError is the error every PDU's Decode returns on failure. It
// always wears a human-readable context string identifying the PDU name
// and chains the underlying cause via Unwrap so
// errors.Is/errors.As keep working against e.g. a wrapped
// NotEnoughBytesError.
type DecodeError struct {
	Kind  DecodeErrorKind
	PDU   string
	Field string // set when Kind == InvalidField
	err   error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Kind == KindInvalidField && e.Field != "":
		return fmt.Sprintf("decode %s: invalid field %q: %v", e.PDU, e.Field, e.err)
	case e.err != nil:
		return fmt.Sprintf("decode %s: %s: %v", e.PDU, e.Kind, e.err)
	default:
		return fmt.Sprintf("decode %s: %s", e.PDU, e.Kind)
	}
}

func (e *DecodeError) Unwrap() error { return e.err }

// NewDecodeError builds a DecodeError of the given kind for the named
// PDU, wrapping err as the underlying cause.
func NewDecodeError(pdu string, kind DecodeErrorKind, err error) *DecodeError {
	return &DecodeError{Kind: kind, PDU: pdu, err: err}
}

// InvalidFieldError builds a KindInvalidField DecodeError naming both the
// PDU and the offending field.
func InvalidFieldError(pdu, field string, err error) *DecodeError {
	return &DecodeError{Kind: KindInvalidField, PDU: pdu, Field: field, err: err}
}

// WrapDecode annotates err with the PDU name that was being decoded when
// it occurred, preserving the DecodeErrorKind if err already carries one
// (e.g. a NotEnoughBytesError surfacing from a cursor.Reader, or a
// *DecodeError bubbling up from a nested PDU) instead of flattening
// everything to KindOther.
func WrapDecode(pdu string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*NotEnoughBytesError); ok {
		return &DecodeError{Kind: KindNotEnoughBytes, PDU: pdu, err: err}
	}
	if de, ok := err.(*DecodeError); ok {
		return de
	}
	return &DecodeError{Kind: KindOther, PDU: pdu, err: err}
}

// EncodeError is the error every PDU's Encode returns on failure. Encode
// only ever fails when the destination buffer is undersized (a caller
// bug: it should have been allocated via Size()), so it carries no kind
// taxonomy beyond the PDU name and the underlying cursor error.
type EncodeError struct {
	PDU string
	err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.PDU, e.err)
}

func (e *EncodeError) Unwrap() error { return e.err }

// WrapEncode annotates err with the PDU name that was being encoded when
// it occurred.
func WrapEncode(pdu string, err error) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EncodeError); ok {
		return ee
	}
	return &EncodeError{PDU: pdu, err: err}
}
