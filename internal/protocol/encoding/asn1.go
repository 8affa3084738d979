// Package encoding implements the restricted ASN.1 BER and PER subsets
// MCS ConnectInitial/ConnectResponse and the GCC conference blocks use
// on the wire (ITU-T T.125/T.124 as profiled by MS-RDPBCGR). It is not
// a general codec: length forms, integer widths and the H.221 key
// padding are fixed to what the protocol actually emits.
package encoding

// ASN.1 class constants
const (
	ClassMask            uint8 = 0xC0
	ClassUniversal       uint8 = 0x00
	ClassApplication     uint8 = 0x40
	ClassContextSpecific uint8 = 0x80
	ClassPrivate         uint8 = 0xC0
)

// ASN.1 primitive/constructed constants
const (
	PCMask      uint8 = 0x20
	PCPrimitive uint8 = 0x00
	PCConstruct uint8 = 0x20
)

// ASN.1 tag constants
const (
	TagMask           uint8 = 0x1F
	TagBoolean        uint8 = 0x01
	TagInteger        uint8 = 0x02
	TagBitString      uint8 = 0x03
	TagOctetString    uint8 = 0x04
	TagObjectIdenfier uint8 = 0x06
	TagEnumerated     uint8 = 0x0A
	TagSequence       uint8 = 0x10
	TagSequenceOf     uint8 = 0x10
)
