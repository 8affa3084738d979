package capset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

func TestChannelTableOrderingAndFreeze(t *testing.T) {
	s := New()
	s.AddChannel("user", 1001, true)
	s.AddChannel("rdpdr", 1002, false)
	s.AddChannel("cliprdr", 1003, false)
	s.MarkJoined("user")
	s.MarkJoined("rdpdr")

	got := s.Channels()
	require.Len(t, got, 3)
	require.Equal(t, "user", got[0].Name)
	require.Equal(t, "rdpdr", got[1].Name)
	require.Equal(t, "cliprdr", got[2].Name)
	require.True(t, got[0].Joined)
	require.False(t, got[2].Joined)

	s.Freeze()
	require.True(t, s.Frozen())
	require.Panics(t, func() { s.AddChannel("late", 1004, false) })
}

func TestDropChannelRemovesRejectedJoin(t *testing.T) {
	s := New()
	s.AddChannel("user", 1001, true)
	s.AddChannel("rail", 1005, false)
	s.DropChannel("rail")

	_, ok := s.Channel("rail")
	require.False(t, ok)
	require.Len(t, s.Channels(), 1)
}

func TestIntersectGeneralFlagsAND(t *testing.T) {
	client := []pdu.CapabilitySet{{
		CapabilitySetType:    pdu.CapabilitySetTypeGeneral,
		GeneralCapabilitySet: &pdu.GeneralCapabilitySet{ExtraFlags: 0x000B},
	}}
	server := []pdu.CapabilitySet{{
		CapabilitySetType:    pdu.CapabilitySetTypeGeneral,
		GeneralCapabilitySet: &pdu.GeneralCapabilitySet{ExtraFlags: 0x0009},
	}}

	s := New()
	require.NoError(t, s.Intersect(client, server))

	got, ok := s.Negotiated(pdu.CapabilitySetTypeGeneral)
	require.True(t, ok)
	require.Equal(t, uint16(0x0009), got.GeneralCapabilitySet.ExtraFlags)
}

func TestIntersectBitmapTakesMin(t *testing.T) {
	client := []pdu.CapabilitySet{{
		CapabilitySetType:   pdu.CapabilitySetTypeBitmap,
		BitmapCapabilitySet: &pdu.BitmapCapabilitySet{PreferredBitsPerPixel: 16},
	}}
	server := []pdu.CapabilitySet{{
		CapabilitySetType:   pdu.CapabilitySetTypeBitmap,
		BitmapCapabilitySet: &pdu.BitmapCapabilitySet{PreferredBitsPerPixel: 32},
	}}

	s := New()
	require.NoError(t, s.Intersect(client, server))

	got, ok := s.Negotiated(pdu.CapabilitySetTypeBitmap)
	require.True(t, ok)
	require.Equal(t, uint16(16), got.BitmapCapabilitySet.PreferredBitsPerPixel)
}

func TestIntersectUnknownCategoryEchoesServerDemand(t *testing.T) {
	server := []pdu.CapabilitySet{{
		CapabilitySetType:  pdu.CapabilitySetTypeShare,
		ShareCapabilitySet: &pdu.ShareCapabilitySet{},
	}}

	s := New()
	require.NoError(t, s.Intersect(nil, server))

	got, ok := s.Negotiated(pdu.CapabilitySetTypeShare)
	require.True(t, ok)
	require.Same(t, server[0].ShareCapabilitySet, got.ShareCapabilitySet)
}

func TestIntersectBitmapCodecsFiltersToClientGUIDs(t *testing.T) {
	guidA := [16]byte{1}
	guidB := [16]byte{2}

	client := []pdu.CapabilitySet{{
		CapabilitySetType: pdu.CapabilitySetTypeBitmapCodecs,
		BitmapCodecsCapabilitySet: &pdu.BitmapCodecsCapabilitySet{
			BitmapCodecArray: []pdu.BitmapCodec{{CodecGUID: guidA}},
		},
	}}
	server := []pdu.CapabilitySet{{
		CapabilitySetType: pdu.CapabilitySetTypeBitmapCodecs,
		BitmapCodecsCapabilitySet: &pdu.BitmapCodecsCapabilitySet{
			BitmapCodecArray: []pdu.BitmapCodec{{CodecGUID: guidA}, {CodecGUID: guidB}},
		},
	}}

	s := New()
	require.NoError(t, s.Intersect(client, server))

	got, ok := s.Negotiated(pdu.CapabilitySetTypeBitmapCodecs)
	require.True(t, ok)
	require.Len(t, got.BitmapCodecsCapabilitySet.BitmapCodecArray, 1)
	require.Equal(t, guidA, got.BitmapCodecsCapabilitySet.BitmapCodecArray[0].CodecGUID)
}

// TestIntersectDeterministic is Property 6: identical input always
// produces a byte-for-byte identical negotiated set, regardless of the
// order capability sets appear in the server's demand.
func TestIntersectDeterministic(t *testing.T) {
	client := []pdu.CapabilitySet{
		{CapabilitySetType: pdu.CapabilitySetTypeGeneral, GeneralCapabilitySet: &pdu.GeneralCapabilitySet{ExtraFlags: 0xFFFF}},
		{CapabilitySetType: pdu.CapabilitySetTypeBitmap, BitmapCapabilitySet: &pdu.BitmapCapabilitySet{PreferredBitsPerPixel: 32}},
	}
	serverA := []pdu.CapabilitySet{
		{CapabilitySetType: pdu.CapabilitySetTypeGeneral, GeneralCapabilitySet: &pdu.GeneralCapabilitySet{ExtraFlags: 0x000A}},
		{CapabilitySetType: pdu.CapabilitySetTypeBitmap, BitmapCapabilitySet: &pdu.BitmapCapabilitySet{PreferredBitsPerPixel: 24}},
	}
	serverB := []pdu.CapabilitySet{serverA[1], serverA[0]}

	s1 := New()
	require.NoError(t, s1.Intersect(client, serverA))
	s2 := New()
	require.NoError(t, s2.Intersect(client, serverB))

	require.Equal(t, s1.NegotiatedSets(), s2.NegotiatedSets())
}
