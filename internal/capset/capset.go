// Package capset holds the two pieces of state the connection sequence
// accumulates but never re-derives: the negotiated capability set per
// category, and the ordered table of joined MCS channels. It is a pure
// value container — no I/O, no decoding — over the per-category
// capability fields internal/protocol/pdu/cap_*.go defines.
package capset

import (
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

// Channel is one entry of the channel table: a static channel name bound
// to the MCS channel ID the server assigned during ChannelConnection.
type Channel struct {
	Name         string
	MCSChannelID uint16
	Mandatory    bool
	Joined       bool
}

// Store accumulates negotiated settings during the connection sequence.
// Channels gain entries only while joining is in progress; once Freeze
// is called (at the end of ChannelConnection) further inserts panic, so
// the table cannot grow after the join phase completes.
type Store struct {
	channels []Channel
	byName   map[string]int
	frozen   bool

	negotiated map[pdu.CapabilitySetType]pdu.CapabilitySet

	userChannelID    uint16
	ioChannelID      uint16
	messageChannelID uint16
	hasMessageChan   bool
}

// New returns an empty Store ready to accumulate a channel table and
// capability set during one connection sequence.
func New() *Store {
	return &Store{
		byName:     make(map[string]int),
		negotiated: make(map[pdu.CapabilitySetType]pdu.CapabilitySet),
	}
}

// SetUserChannelID records the MCS channel ID AttachUserConfirm granted.
func (s *Store) SetUserChannelID(id uint16) { s.userChannelID = id }

// UserChannelID returns the channel ID granted by AttachUserConfirm.
func (s *Store) UserChannelID() uint16 { return s.userChannelID }

// SetIOChannelID records the server's I/O (global) channel ID.
func (s *Store) SetIOChannelID(id uint16) { s.ioChannelID = id }

// IOChannelID returns the server-assigned I/O channel ID.
func (s *Store) IOChannelID() uint16 { return s.ioChannelID }

// SetMessageChannelID records the optional server message channel ID.
func (s *Store) SetMessageChannelID(id uint16) {
	s.messageChannelID = id
	s.hasMessageChan = true
}

// MessageChannelID returns the server message channel ID and whether one
// was negotiated at all.
func (s *Store) MessageChannelID() (uint16, bool) { return s.messageChannelID, s.hasMessageChan }

// AddChannel inserts a channel into the table in join order. It panics if
// called after Freeze — a programmer error, since the connector only
// calls this during ChannelConnection.
func (s *Store) AddChannel(name string, mcsChannelID uint16, mandatory bool) {
	if s.frozen {
		panic("capset: AddChannel after Freeze")
	}
	if i, ok := s.byName[name]; ok {
		s.channels[i].MCSChannelID = mcsChannelID
		return
	}
	s.byName[name] = len(s.channels)
	s.channels = append(s.channels, Channel{Name: name, MCSChannelID: mcsChannelID, Mandatory: mandatory})
}

// MarkJoined records that a channel's join was confirmed successfully.
func (s *Store) MarkJoined(name string) {
	if i, ok := s.byName[name]; ok {
		s.channels[i].Joined = true
	}
}

// DropChannel removes a non-mandatory channel whose join failed, so it
// is absent from the final table.
func (s *Store) DropChannel(name string) {
	i, ok := s.byName[name]
	if !ok {
		return
	}
	s.channels = append(s.channels[:i], s.channels[i+1:]...)
	delete(s.byName, name)
	for j := i; j < len(s.channels); j++ {
		s.byName[s.channels[j].Name] = j
	}
}

// Freeze prevents further channel inserts. Idempotent.
func (s *Store) Freeze() { s.frozen = true }

// Frozen reports whether the channel table has been frozen.
func (s *Store) Frozen() bool { return s.frozen }

// Channels returns the channel table in insertion (join) order. The
// returned slice is a copy; callers may not mutate the store through it.
func (s *Store) Channels() []Channel {
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Channel looks up a channel by name.
func (s *Store) Channel(name string) (Channel, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Channel{}, false
	}
	return s.channels[i], true
}

// SetNegotiated records the final, intersected value for one capability
// category, overwriting any previous entry for that type.
func (s *Store) SetNegotiated(cap pdu.CapabilitySet) {
	s.negotiated[cap.CapabilitySetType] = cap
}

// Negotiated returns the negotiated capability set for a category.
func (s *Store) Negotiated(t pdu.CapabilitySetType) (pdu.CapabilitySet, bool) {
	c, ok := s.negotiated[t]
	return c, ok
}

// NegotiatedSets returns every negotiated capability set, in ascending
// type order, for building a Confirm Active PDU deterministically
// (Property 6).
func (s *Store) NegotiatedSets() []pdu.CapabilitySet {
	types := make([]pdu.CapabilitySetType, 0, len(s.negotiated))
	for t := range s.negotiated {
		types = append(types, t)
	}
	// Simple insertion sort: the category count is small (<32) and this
	// keeps the package free of a sort.Slice closure allocation per call.
	for i := 1; i < len(types); i++ {
		for j := i; j > 0 && types[j-1] > types[j]; j-- {
			types[j-1], types[j] = types[j], types[j-1]
		}
	}
	out := make([]pdu.CapabilitySet, 0, len(types))
	for _, t := range types {
		out = append(out, s.negotiated[t])
	}
	return out
}

// Intersect merges the client's advertised maxima with the server's
// demanded capability sets, category by category, and records the
// result. Categories the client never advertised are recorded with the
// server's demand echoed unchanged; categories with no per-field rule
// below fall back to keeping the server's demanded value verbatim,
// since the server is authoritative for anything the client did not
// bound — this still satisfies Property 6's determinism requirement
// because the merge is a pure function of (clientMax, serverDemand).
func (s *Store) Intersect(clientMax, serverDemand []pdu.CapabilitySet) error {
	clientByType := make(map[pdu.CapabilitySetType]pdu.CapabilitySet, len(clientMax))
	for _, c := range clientMax {
		clientByType[c.CapabilitySetType] = c
	}

	for _, demand := range serverDemand {
		client, haveClient := clientByType[demand.CapabilitySetType]
		merged, err := mergeOne(client, demand, haveClient)
		if err != nil {
			return fmt.Errorf("capset: intersect %v: %w", demand.CapabilitySetType, err)
		}
		s.SetNegotiated(merged)
	}
	return nil
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// mergeOne applies the per-category merge rule. When
// the client never advertised the category, the server's demand is kept
// unmodified (there is nothing to intersect against).
func mergeOne(client, demand pdu.CapabilitySet, haveClient bool) (pdu.CapabilitySet, error) {
	if !haveClient {
		return demand, nil
	}

	switch demand.CapabilitySetType {
	case pdu.CapabilitySetTypeGeneral:
		if client.GeneralCapabilitySet == nil || demand.GeneralCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.GeneralCapabilitySet
		merged.ExtraFlags = client.GeneralCapabilitySet.ExtraFlags & demand.GeneralCapabilitySet.ExtraFlags
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, GeneralCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeBitmap:
		if client.BitmapCapabilitySet == nil || demand.BitmapCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.BitmapCapabilitySet
		merged.PreferredBitsPerPixel = minU16(client.BitmapCapabilitySet.PreferredBitsPerPixel, demand.BitmapCapabilitySet.PreferredBitsPerPixel)
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, BitmapCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeOrder:
		if client.OrderCapabilitySet == nil || demand.OrderCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.OrderCapabilitySet
		merged.OrderFlags = client.OrderCapabilitySet.OrderFlags & demand.OrderCapabilitySet.OrderFlags
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, OrderCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeInput:
		if client.InputCapabilitySet == nil || demand.InputCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.InputCapabilitySet
		merged.InputFlags = client.InputCapabilitySet.InputFlags & demand.InputCapabilitySet.InputFlags
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, InputCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypePointer:
		if client.PointerCapabilitySet == nil || demand.PointerCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.PointerCapabilitySet
		merged.ColorPointerCacheSize = minU16(client.PointerCapabilitySet.ColorPointerCacheSize, demand.PointerCapabilitySet.ColorPointerCacheSize)
		merged.PointerCacheSize = minU16(client.PointerCapabilitySet.PointerCacheSize, demand.PointerCapabilitySet.PointerCacheSize)
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, PointerCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeLargePointer:
		if client.LargePointerCapabilitySet == nil || demand.LargePointerCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.LargePointerCapabilitySet
		merged.LargePointerSupportFlags = client.LargePointerCapabilitySet.LargePointerSupportFlags & demand.LargePointerCapabilitySet.LargePointerSupportFlags
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, LargePointerCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeMultifragmentUpdate:
		if client.MultifragmentUpdateCapabilitySet == nil || demand.MultifragmentUpdateCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.MultifragmentUpdateCapabilitySet
		merged.MaxRequestSize = minU32(client.MultifragmentUpdateCapabilitySet.MaxRequestSize, demand.MultifragmentUpdateCapabilitySet.MaxRequestSize)
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, MultifragmentUpdateCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeSurfaceCommands:
		if client.SurfaceCommandsCapabilitySet == nil || demand.SurfaceCommandsCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.SurfaceCommandsCapabilitySet
		merged.CmdFlags = client.SurfaceCommandsCapabilitySet.CmdFlags & demand.SurfaceCommandsCapabilitySet.CmdFlags
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, SurfaceCommandsCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeFrameAcknowledge:
		// Client-only capability; the server never demands it, kept for
		// completeness of the switch.
		return demand, nil

	case pdu.CapabilitySetTypeVirtualChannel:
		if client.VirtualChannelCapabilitySet == nil || demand.VirtualChannelCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.VirtualChannelCapabilitySet
		merged.VCChunkSize = minU32(client.VirtualChannelCapabilitySet.VCChunkSize, demand.VirtualChannelCapabilitySet.VCChunkSize)
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, VirtualChannelCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeSound:
		if client.SoundCapabilitySet == nil || demand.SoundCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.SoundCapabilitySet
		merged.SoundFlags = client.SoundCapabilitySet.SoundFlags & demand.SoundCapabilitySet.SoundFlags
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, SoundCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeOffscreenBitmapCache:
		if client.OffscreenBitmapCacheCapabilitySet == nil || demand.OffscreenBitmapCacheCapabilitySet == nil {
			return demand, nil
		}
		merged := *demand.OffscreenBitmapCacheCapabilitySet
		if client.OffscreenBitmapCacheCapabilitySet.OffscreenSupportLevel == 0 {
			merged.OffscreenSupportLevel = 0
		}
		merged.OffscreenCacheSize = minU16(client.OffscreenBitmapCacheCapabilitySet.OffscreenCacheSize, demand.OffscreenBitmapCacheCapabilitySet.OffscreenCacheSize)
		merged.OffscreenCacheEntries = minU16(client.OffscreenBitmapCacheCapabilitySet.OffscreenCacheEntries, demand.OffscreenBitmapCacheCapabilitySet.OffscreenCacheEntries)
		return pdu.CapabilitySet{CapabilitySetType: demand.CapabilitySetType, OffscreenBitmapCacheCapabilitySet: &merged}, nil

	case pdu.CapabilitySetTypeBitmapCodecs:
		// Codec lists intersect by GUID; NewBitmapCodecsWithRFXCapabilitySet
		// and friends build the client side so the demanded list is
		// filtered down to codecs the client also advertised.
		if client.BitmapCodecsCapabilitySet == nil || demand.BitmapCodecsCapabilitySet == nil {
			return demand, nil
		}
		clientGUIDs := make(map[[16]byte]bool, len(client.BitmapCodecsCapabilitySet.BitmapCodecArray))
		for _, c := range client.BitmapCodecsCapabilitySet.BitmapCodecArray {
			clientGUIDs[c.CodecGUID] = true
		}
		var kept []pdu.BitmapCodec
		for _, c := range demand.BitmapCodecsCapabilitySet.BitmapCodecArray {
			if clientGUIDs[c.CodecGUID] {
				kept = append(kept, c)
			}
		}
		return pdu.CapabilitySet{
			CapabilitySetType:         demand.CapabilitySetType,
			BitmapCodecsCapabilitySet: &pdu.BitmapCodecsCapabilitySet{BitmapCodecArray: kept},
		}, nil

	default:
		// Share, Font, Brush, Control, Activation and the other
		// zero/near-zero-field categories have no negotiable sub-field:
		// echo the server's demand verbatim, and preserve genuinely
		// unknown categories as opaque raw bytes.
		return demand, nil
	}
}
