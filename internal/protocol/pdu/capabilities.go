package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// CapabilitySetType identifies the kind of capability set carried by a
// CapabilitySet (MS-RDPBCGR 2.2.7.1).
type CapabilitySetType uint16

const (
	CapabilitySetTypeGeneral                CapabilitySetType = 1
	CapabilitySetTypeBitmap                 CapabilitySetType = 2
	CapabilitySetTypeOrder                  CapabilitySetType = 3
	CapabilitySetTypeBitmapCache            CapabilitySetType = 4
	CapabilitySetTypeControl                CapabilitySetType = 5
	CapabilitySetTypeActivation             CapabilitySetType = 7
	CapabilitySetTypePointer                CapabilitySetType = 8
	CapabilitySetTypeShare                  CapabilitySetType = 9
	CapabilitySetTypeColorCache             CapabilitySetType = 10
	CapabilitySetTypeSound                  CapabilitySetType = 12
	CapabilitySetTypeInput                  CapabilitySetType = 13
	CapabilitySetTypeFont                   CapabilitySetType = 14
	CapabilitySetTypeBrush                  CapabilitySetType = 15
	CapabilitySetTypeGlyphCache             CapabilitySetType = 16
	CapabilitySetTypeOffscreenBitmapCache   CapabilitySetType = 17
	CapabilitySetTypeBitmapCacheHostSupport CapabilitySetType = 18
	CapabilitySetTypeBitmapCacheRev2        CapabilitySetType = 19
	CapabilitySetTypeVirtualChannel         CapabilitySetType = 20
	CapabilitySetTypeDrawNineGridCache      CapabilitySetType = 21
	CapabilitySetTypeDrawGDIPlus            CapabilitySetType = 22
	CapabilitySetTypeRail                   CapabilitySetType = 23
	CapabilitySetTypeWindow                 CapabilitySetType = 24
	CapabilitySetTypeDesktopComposition     CapabilitySetType = 25
	CapabilitySetTypeMultifragmentUpdate    CapabilitySetType = 26
	CapabilitySetTypeLargePointer           CapabilitySetType = 27
	CapabilitySetTypeSurfaceCommands        CapabilitySetType = 28
	CapabilitySetTypeBitmapCodecs           CapabilitySetType = 29
	CapabilitySetTypeFrameAcknowledge       CapabilitySetType = 30
)

// CapabilitySet is the tagged union of every capability set a client or
// server may advertise during the Capabilities Exchange. Exactly one of
// the pointer fields identified by CapabilitySetType is populated; the
// rest stay nil. Unknown types survive a round trip via UnknownData so a
// replayed demand-active PDU does not silently drop capabilities this
// package has not learned about yet.
type CapabilitySet struct {
	CapabilitySetType CapabilitySetType

	GeneralCapabilitySet                *GeneralCapabilitySet
	BitmapCapabilitySet                 *BitmapCapabilitySet
	OrderCapabilitySet                  *OrderCapabilitySet
	BitmapCacheCapabilitySetRev1        *BitmapCacheCapabilitySetRev1
	BitmapCacheCapabilitySetRev2        *BitmapCacheCapabilitySetRev2
	ControlCapabilitySet                *ControlCapabilitySet
	WindowActivationCapabilitySet       *WindowActivationCapabilitySet
	PointerCapabilitySet                *PointerCapabilitySet
	ShareCapabilitySet                  *ShareCapabilitySet
	ColorCacheCapabilitySet             *ColorCacheCapabilitySet
	SoundCapabilitySet                  *SoundCapabilitySet
	InputCapabilitySet                  *InputCapabilitySet
	FontCapabilitySet                   *FontCapabilitySet
	BrushCapabilitySet                  *BrushCapabilitySet
	GlyphCacheCapabilitySet             *GlyphCacheCapabilitySet
	OffscreenBitmapCacheCapabilitySet   *OffscreenBitmapCacheCapabilitySet
	BitmapCacheHostSupportCapabilitySet *BitmapCacheHostSupportCapabilitySet
	VirtualChannelCapabilitySet         *VirtualChannelCapabilitySet
	DrawNineGridCacheCapabilitySet      *DrawNineGridCacheCapabilitySet
	DrawGDIPlusCapabilitySet            *DrawGDIPlusCapabilitySet
	RailCapabilitySet                   *RailCapabilitySet
	WindowListCapabilitySet             *WindowListCapabilitySet
	DesktopCompositionCapabilitySet     *DesktopCompositionCapabilitySet
	MultifragmentUpdateCapabilitySet    *MultifragmentUpdateCapabilitySet
	LargePointerCapabilitySet           *LargePointerCapabilitySet
	SurfaceCommandsCapabilitySet        *SurfaceCommandsCapabilitySet
	BitmapCodecsCapabilitySet           *BitmapCodecsCapabilitySet
	FrameAcknowledgeCapabilitySet       *FrameAcknowledgeCapabilitySet

	// UnknownData holds the raw body of a capability set whose type this
	// package does not model. Preserved so it can be echoed back untouched.
	UnknownData []byte
}

type capabilityBody interface {
	Serialize() []byte
}

func (c *CapabilitySet) body() capabilityBody {
	switch {
	case c.GeneralCapabilitySet != nil:
		return c.GeneralCapabilitySet
	case c.BitmapCapabilitySet != nil:
		return c.BitmapCapabilitySet
	case c.OrderCapabilitySet != nil:
		return c.OrderCapabilitySet
	case c.BitmapCacheCapabilitySetRev1 != nil:
		return c.BitmapCacheCapabilitySetRev1
	case c.BitmapCacheCapabilitySetRev2 != nil:
		return c.BitmapCacheCapabilitySetRev2
	case c.ControlCapabilitySet != nil:
		return c.ControlCapabilitySet
	case c.WindowActivationCapabilitySet != nil:
		return c.WindowActivationCapabilitySet
	case c.PointerCapabilitySet != nil:
		return c.PointerCapabilitySet
	case c.ShareCapabilitySet != nil:
		return c.ShareCapabilitySet
	case c.ColorCacheCapabilitySet != nil:
		return c.ColorCacheCapabilitySet
	case c.SoundCapabilitySet != nil:
		return c.SoundCapabilitySet
	case c.InputCapabilitySet != nil:
		return c.InputCapabilitySet
	case c.FontCapabilitySet != nil:
		return c.FontCapabilitySet
	case c.BrushCapabilitySet != nil:
		return c.BrushCapabilitySet
	case c.GlyphCacheCapabilitySet != nil:
		return c.GlyphCacheCapabilitySet
	case c.OffscreenBitmapCacheCapabilitySet != nil:
		return c.OffscreenBitmapCacheCapabilitySet
	case c.BitmapCacheHostSupportCapabilitySet != nil:
		return c.BitmapCacheHostSupportCapabilitySet
	case c.VirtualChannelCapabilitySet != nil:
		return c.VirtualChannelCapabilitySet
	case c.DrawNineGridCacheCapabilitySet != nil:
		return c.DrawNineGridCacheCapabilitySet
	case c.DrawGDIPlusCapabilitySet != nil:
		return c.DrawGDIPlusCapabilitySet
	case c.RailCapabilitySet != nil:
		return c.RailCapabilitySet
	case c.WindowListCapabilitySet != nil:
		return c.WindowListCapabilitySet
	case c.DesktopCompositionCapabilitySet != nil:
		return c.DesktopCompositionCapabilitySet
	case c.MultifragmentUpdateCapabilitySet != nil:
		return c.MultifragmentUpdateCapabilitySet
	case c.LargePointerCapabilitySet != nil:
		return c.LargePointerCapabilitySet
	case c.SurfaceCommandsCapabilitySet != nil:
		return c.SurfaceCommandsCapabilitySet
	case c.BitmapCodecsCapabilitySet != nil:
		return c.BitmapCodecsCapabilitySet
	case c.FrameAcknowledgeCapabilitySet != nil:
		return c.FrameAcknowledgeCapabilitySet
	default:
		return nil
	}
}

// Serialize encodes the capability set header (type + total length)
// followed by the body of whichever capability struct is populated.
func (c *CapabilitySet) Serialize() []byte {
	var payload []byte
	if b := c.body(); b != nil {
		payload = b.Serialize()
	} else {
		payload = c.UnknownData
	}

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, uint16(c.CapabilitySetType))
	_ = binary.Write(buf, binary.LittleEndian, uint16(4+len(payload)))
	buf.Write(payload)

	return buf.Bytes()
}

// Deserialize reads the capability set header and dispatches the body to
// the matching struct. Unknown types are preserved verbatim in
// UnknownData rather than rejected.
func (c *CapabilitySet) Deserialize(wire io.Reader) error {
	var capType, length uint16
	if err := binary.Read(wire, binary.LittleEndian, &capType); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &length); err != nil {
		return err
	}
	if length < 4 {
		return fmt.Errorf("pdu: capability set length %d shorter than header", length)
	}

	body := make([]byte, length-4)
	if _, err := io.ReadFull(wire, body); err != nil {
		return err
	}

	c.CapabilitySetType = CapabilitySetType(capType)
	r := bytes.NewReader(body)

	switch c.CapabilitySetType {
	case CapabilitySetTypeGeneral:
		c.GeneralCapabilitySet = &GeneralCapabilitySet{}
		return c.GeneralCapabilitySet.Deserialize(r)
	case CapabilitySetTypeBitmap:
		c.BitmapCapabilitySet = &BitmapCapabilitySet{}
		return c.BitmapCapabilitySet.Deserialize(r)
	case CapabilitySetTypeOrder:
		c.OrderCapabilitySet = &OrderCapabilitySet{}
		return c.OrderCapabilitySet.Deserialize(r)
	case CapabilitySetTypeBitmapCache:
		c.BitmapCacheCapabilitySetRev1 = &BitmapCacheCapabilitySetRev1{}
		return c.BitmapCacheCapabilitySetRev1.Deserialize(r)
	case CapabilitySetTypeBitmapCacheRev2:
		c.BitmapCacheCapabilitySetRev2 = &BitmapCacheCapabilitySetRev2{}
		return c.BitmapCacheCapabilitySetRev2.Deserialize(r)
	case CapabilitySetTypeControl:
		c.ControlCapabilitySet = &ControlCapabilitySet{}
		return c.ControlCapabilitySet.Deserialize(r)
	case CapabilitySetTypeActivation:
		c.WindowActivationCapabilitySet = &WindowActivationCapabilitySet{}
		return c.WindowActivationCapabilitySet.Deserialize(r)
	case CapabilitySetTypePointer:
		c.PointerCapabilitySet = &PointerCapabilitySet{}
		return c.PointerCapabilitySet.Deserialize(r)
	case CapabilitySetTypeShare:
		c.ShareCapabilitySet = &ShareCapabilitySet{}
		return c.ShareCapabilitySet.Deserialize(r)
	case CapabilitySetTypeColorCache:
		c.ColorCacheCapabilitySet = &ColorCacheCapabilitySet{}
		return c.ColorCacheCapabilitySet.Deserialize(r)
	case CapabilitySetTypeSound:
		c.SoundCapabilitySet = &SoundCapabilitySet{}
		return c.SoundCapabilitySet.Deserialize(r)
	case CapabilitySetTypeInput:
		c.InputCapabilitySet = &InputCapabilitySet{}
		return c.InputCapabilitySet.Deserialize(r)
	case CapabilitySetTypeFont:
		c.FontCapabilitySet = &FontCapabilitySet{}
		return c.FontCapabilitySet.Deserialize(r)
	case CapabilitySetTypeBrush:
		c.BrushCapabilitySet = &BrushCapabilitySet{}
		return c.BrushCapabilitySet.Deserialize(r)
	case CapabilitySetTypeGlyphCache:
		c.GlyphCacheCapabilitySet = &GlyphCacheCapabilitySet{}
		return c.GlyphCacheCapabilitySet.Deserialize(r)
	case CapabilitySetTypeOffscreenBitmapCache:
		c.OffscreenBitmapCacheCapabilitySet = &OffscreenBitmapCacheCapabilitySet{}
		return c.OffscreenBitmapCacheCapabilitySet.Deserialize(r)
	case CapabilitySetTypeBitmapCacheHostSupport:
		c.BitmapCacheHostSupportCapabilitySet = &BitmapCacheHostSupportCapabilitySet{}
		return c.BitmapCacheHostSupportCapabilitySet.Deserialize(r)
	case CapabilitySetTypeVirtualChannel:
		c.VirtualChannelCapabilitySet = &VirtualChannelCapabilitySet{}
		return c.VirtualChannelCapabilitySet.Deserialize(r)
	case CapabilitySetTypeDrawNineGridCache:
		c.DrawNineGridCacheCapabilitySet = &DrawNineGridCacheCapabilitySet{}
		return c.DrawNineGridCacheCapabilitySet.Deserialize(r)
	case CapabilitySetTypeDrawGDIPlus:
		c.DrawGDIPlusCapabilitySet = &DrawGDIPlusCapabilitySet{}
		return c.DrawGDIPlusCapabilitySet.Deserialize(r)
	case CapabilitySetTypeRail:
		c.RailCapabilitySet = &RailCapabilitySet{}
		return nil
	case CapabilitySetTypeWindow:
		c.WindowListCapabilitySet = &WindowListCapabilitySet{}
		return nil
	case CapabilitySetTypeDesktopComposition:
		c.DesktopCompositionCapabilitySet = &DesktopCompositionCapabilitySet{}
		return c.DesktopCompositionCapabilitySet.Deserialize(r)
	case CapabilitySetTypeMultifragmentUpdate:
		c.MultifragmentUpdateCapabilitySet = &MultifragmentUpdateCapabilitySet{}
		return c.MultifragmentUpdateCapabilitySet.Deserialize(r)
	case CapabilitySetTypeLargePointer:
		c.LargePointerCapabilitySet = &LargePointerCapabilitySet{}
		return c.LargePointerCapabilitySet.Deserialize(r)
	case CapabilitySetTypeSurfaceCommands:
		c.SurfaceCommandsCapabilitySet = &SurfaceCommandsCapabilitySet{}
		return c.SurfaceCommandsCapabilitySet.Deserialize(r)
	case CapabilitySetTypeBitmapCodecs:
		c.BitmapCodecsCapabilitySet = &BitmapCodecsCapabilitySet{}
		return c.BitmapCodecsCapabilitySet.Deserialize(r)
	case CapabilitySetTypeFrameAcknowledge:
		c.FrameAcknowledgeCapabilitySet = &FrameAcknowledgeCapabilitySet{}
		return c.FrameAcknowledgeCapabilitySet.Deserialize(r)
	default:
		c.UnknownData = body
		return nil
	}
}

// DeserializeQuick reads only the capability set header, classifying the
// type without decoding the body. Used when a caller only needs to know
// which capabilities a peer advertised, e.g. while scanning a demand
// active PDU for a single capability before committing to a full decode.
func (c *CapabilitySet) DeserializeQuick(wire io.Reader) error {
	var capType, length uint16
	if err := binary.Read(wire, binary.LittleEndian, &capType); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &length); err != nil {
		return err
	}
	if length < 4 {
		return fmt.Errorf("pdu: capability set length %d shorter than header", length)
	}
	if _, err := io.CopyN(io.Discard, wire, int64(length-4)); err != nil {
		return err
	}

	c.CapabilitySetType = CapabilitySetType(capType)
	return nil
}

// ServerDemandActive represents the TS_DEMAND_ACTIVE_PDU sent by the
// server to open the Capabilities Exchange (MS-RDPBCGR 2.2.1.13.1).
type ServerDemandActive struct {
	ShareControlHeader ShareControlHeader
	ShareID            uint32
	SourceDescriptor   []byte
	CapabilitySets     []CapabilitySet
	SessionID          uint32
}

// Deserialize decodes a demand active PDU from wire format.
func (d *ServerDemandActive) Deserialize(wire io.Reader) error {
	if err := d.ShareControlHeader.Deserialize(wire); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &d.ShareID); err != nil {
		return err
	}

	var lengthSourceDescriptor uint16
	if err := binary.Read(wire, binary.LittleEndian, &lengthSourceDescriptor); err != nil {
		return err
	}

	d.SourceDescriptor = make([]byte, lengthSourceDescriptor)
	if _, err := io.ReadFull(wire, d.SourceDescriptor); err != nil {
		return err
	}

	var lengthCombinedCapabilities, numberCapabilities, pad2Octets uint16
	if err := binary.Read(wire, binary.LittleEndian, &lengthCombinedCapabilities); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &numberCapabilities); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &pad2Octets); err != nil {
		return err
	}

	d.CapabilitySets = make([]CapabilitySet, 0, numberCapabilities)
	for i := uint16(0); i < numberCapabilities; i++ {
		var set CapabilitySet
		if err := set.Deserialize(wire); err != nil {
			return err
		}
		d.CapabilitySets = append(d.CapabilitySets, set)
	}

	return binary.Read(wire, binary.LittleEndian, &d.SessionID)
}

// ClientConfirmActive represents the TS_CONFIRM_ACTIVE_PDU the client
// sends in reply to a demand active PDU (MS-RDPBCGR 2.2.1.13.2). It
// carries the client's final, negotiated set of capabilities.
type ClientConfirmActive struct {
	ShareControlHeader ShareControlHeader
	ShareID            uint32
	OriginatorID       uint16
	SourceDescriptor   []byte
	CapabilitySets     []CapabilitySet
}

// NewClientConfirmActive builds the baseline confirm active PDU a client
// sends after completing the Capabilities Exchange: the General, Bitmap
// (sized for the given desktop resolution), Order, Bitmap Cache rev. 1,
// Pointer, Input, Brush, Glyph Cache, Offscreen Bitmap Cache, Virtual
// Channel, Sound and Multifragment Update sets. RemoteApp sessions
// additionally advertise Rail and window list support.
func NewClientConfirmActive(shareID uint32, userID uint16, desktopWidth, desktopHeight uint16, remoteApp bool) ClientConfirmActive {
	capabilitySets := []CapabilitySet{
		NewGeneralCapabilitySet(),
		NewBitmapCapabilitySet(desktopWidth, desktopHeight),
		NewOrderCapabilitySet(),
		NewBitmapCacheCapabilitySetRev1(),
		NewPointerCapabilitySet(),
		NewInputCapabilitySet(),
		NewBrushCapabilitySet(),
		NewGlyphCacheCapabilitySet(),
		NewOffscreenBitmapCacheCapabilitySet(),
		NewVirtualChannelCapabilitySet(),
		NewSoundCapabilitySet(),
		NewMultifragmentUpdateCapabilitySet(),
	}

	if remoteApp {
		capabilitySets = append(capabilitySets, NewRailCapabilitySet(), NewWindowListCapabilitySet())
	}

	return ClientConfirmActive{
		ShareControlHeader: ShareControlHeader{
			PDUType:   TypeConfirmActive,
			PDUSource: userID,
		},
		ShareID:          shareID,
		OriginatorID:     userID,
		SourceDescriptor: []byte("rdpcore\x00"),
		CapabilitySets:   capabilitySets,
	}
}

// Serialize encodes the confirm active PDU to wire format.
func (c *ClientConfirmActive) Serialize() []byte {
	capBuf := new(bytes.Buffer)
	for i := range c.CapabilitySets {
		capBuf.Write(c.CapabilitySets[i].Serialize())
	}

	body := new(bytes.Buffer)
	_ = binary.Write(body, binary.LittleEndian, c.ShareID)
	_ = binary.Write(body, binary.LittleEndian, c.OriginatorID)
	_ = binary.Write(body, binary.LittleEndian, uint16(len(c.SourceDescriptor)))
	_ = binary.Write(body, binary.LittleEndian, uint16(4+capBuf.Len()))
	body.Write(c.SourceDescriptor)
	_ = binary.Write(body, binary.LittleEndian, uint16(len(c.CapabilitySets)))
	_ = binary.Write(body, binary.LittleEndian, uint16(0)) // pad2Octets
	body.Write(capBuf.Bytes())

	c.ShareControlHeader.PDUType = TypeConfirmActive
	c.ShareControlHeader.TotalLength = 6 + uint16(body.Len())

	buf := new(bytes.Buffer)
	buf.Write(c.ShareControlHeader.Serialize())
	buf.Write(body.Bytes())

	return buf.Bytes()
}

// Deserialize decodes a confirm active PDU from wire format.
func (c *ClientConfirmActive) Deserialize(wire io.Reader) error {
	if err := c.ShareControlHeader.Deserialize(wire); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &c.ShareID); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &c.OriginatorID); err != nil {
		return err
	}

	var lengthSourceDescriptor, lengthCombinedCapabilities uint16
	if err := binary.Read(wire, binary.LittleEndian, &lengthSourceDescriptor); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &lengthCombinedCapabilities); err != nil {
		return err
	}

	c.SourceDescriptor = make([]byte, lengthSourceDescriptor)
	if _, err := io.ReadFull(wire, c.SourceDescriptor); err != nil {
		return err
	}

	var numberCapabilities, pad2Octets uint16
	if err := binary.Read(wire, binary.LittleEndian, &numberCapabilities); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &pad2Octets); err != nil {
		return err
	}

	c.CapabilitySets = make([]CapabilitySet, 0, numberCapabilities)
	for i := uint16(0); i < numberCapabilities; i++ {
		var set CapabilitySet
		if err := set.Deserialize(wire); err != nil {
			return err
		}
		c.CapabilitySets = append(c.CapabilitySets, set)
	}

	return nil
}

// Serialize encodes the capability set to wire format.
func (s *LargePointerCapabilitySet) Serialize() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, s.LargePointerSupportFlags)
	return buf.Bytes()
}

// Serialize encodes the capability set to wire format.
func (s *DesktopCompositionCapabilitySet) Serialize() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, s.CompDeskSupportLevel)
	return buf.Bytes()
}

// FrameAcknowledgeCapabilitySet represents the TS_FRAME_ACKNOWLEDGE_CAPABILITYSET
// structure advertised by clients that support the Frame Acknowledge PDU.
type FrameAcknowledgeCapabilitySet struct {
	MaxUnacknowledgedFrames uint32
}

// NewFrameAcknowledgeCapabilitySet creates a Frame Acknowledge capability
// set allowing a small number of frames in flight before the server must
// wait for acknowledgement.
func NewFrameAcknowledgeCapabilitySet() CapabilitySet {
	return CapabilitySet{
		CapabilitySetType: CapabilitySetTypeFrameAcknowledge,
		FrameAcknowledgeCapabilitySet: &FrameAcknowledgeCapabilitySet{
			MaxUnacknowledgedFrames: 2,
		},
	}
}

func (s *FrameAcknowledgeCapabilitySet) Serialize() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, s.MaxUnacknowledgedFrames)
	return buf.Bytes()
}

func (s *FrameAcknowledgeCapabilitySet) Deserialize(wire io.Reader) error {
	return binary.Read(wire, binary.LittleEndian, &s.MaxUnacknowledgedFrames)
}

// rfxCodecGUID is the GUID for RemoteFX progressive codec
// (CA8D1BB9-000F-154F-589F-AE2D1A87E2D7).
var rfxCodecGUID = [16]byte{
	0xB9, 0x1B, 0x8D, 0xCA, 0x0F, 0x00, 0x4F, 0x15,
	0x58, 0x9F, 0xAE, 0x2D, 0x1A, 0x87, 0xE2, 0xD7,
}

// NewBitmapCodecsWithRFXCapabilitySet builds a Bitmap Codecs capability
// set advertising RemoteFX progressive tile support in addition to the
// baseline NSCodec entry produced by NewBitmapCodecsCapabilitySet.
func NewBitmapCodecsWithRFXCapabilitySet() CapabilitySet {
	set := NewBitmapCodecsCapabilitySet()
	set.BitmapCodecsCapabilitySet.BitmapCodecArray = append(set.BitmapCodecsCapabilitySet.BitmapCodecArray, BitmapCodec{
		CodecGUID:       rfxCodecGUID,
		CodecID:         0x02,
		CodecProperties: []byte{},
	})
	return set
}
