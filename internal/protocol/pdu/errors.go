package pdu

import "errors"

var (
	// ErrInvalidCorrelationID indicates a correlation ID that is not 16 bytes
	// long or holds a byte value MS-RDPBCGR 2.2.1.1.2 rules out.
	ErrInvalidCorrelationID = errors.New("invalid correlationId")
	// ErrDeactivateAll indicates the server sent a Deactivate All PDU (MS-RDPBCGR 2.2.3.1).
	ErrDeactivateAll = errors.New("deactivate all")
	// ErrDeactiateAll is an alias of ErrDeactivateAll kept for compatibility
	// with older call sites.
	ErrDeactiateAll = ErrDeactivateAll
)
