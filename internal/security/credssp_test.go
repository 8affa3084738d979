package security

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/auth"
)

// fakeNTLMChallenge builds a minimal, valid NTLM CHALLENGE_MESSAGE the
// same shape internal/auth/auth_test.go's TestGetAuthenticateMessage
// constructs, so CredSSP.Step can drive internal/auth's real NTLMv2
// implementation end to end without a live server.
func fakeNTLMChallenge() []byte {
	buf := &bytes.Buffer{}
	buf.Write([]byte{'N', 'T', 'L', 'M', 'S', 'S', 'P', 0x00})
	binary.Write(buf, binary.LittleEndian, uint32(2))
	binary.Write(buf, binary.LittleEndian, uint16(0))
	binary.Write(buf, binary.LittleEndian, uint16(0))
	binary.Write(buf, binary.LittleEndian, uint32(0))
	flags := uint32(0x00000001 | 0x00000200) // UNICODE | NTLM
	binary.Write(buf, binary.LittleEndian, flags)
	buf.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}) // server challenge
	buf.Write(make([]byte, 8))                // reserved

	targetInfo := &bytes.Buffer{}
	binary.Write(targetInfo, binary.LittleEndian, uint16(0x0007)) // MsvAvTimestamp
	binary.Write(targetInfo, binary.LittleEndian, uint16(8))
	targetInfo.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	binary.Write(targetInfo, binary.LittleEndian, uint16(0)) // MsvAvEOL
	binary.Write(targetInfo, binary.LittleEndian, uint16(0))

	binary.Write(buf, binary.LittleEndian, uint16(targetInfo.Len()))
	binary.Write(buf, binary.LittleEndian, uint16(targetInfo.Len()))
	binary.Write(buf, binary.LittleEndian, uint32(56))

	for buf.Len() < 56 {
		buf.WriteByte(0)
	}
	buf.Write(targetInfo.Bytes())
	return buf.Bytes()
}

func TestCredSSPHappyPathToDone(t *testing.T) {
	c := NewCredSSP("DOMAIN", "user", "password", bytes.Repeat([]byte{0xAB}, 32))

	negoToken, event, err := c.Step(nil)
	require.NoError(t, err)
	require.Equal(t, CredSSPContinue, event)
	require.NotEmpty(t, negoToken)

	negoReq, err := auth.DecodeTSRequest(negoToken)
	require.NoError(t, err)
	require.Len(t, negoReq.NegoTokens, 1)

	challengeTSReq := auth.EncodeTSRequestWithVersion(6, [][]byte{fakeNTLMChallenge()}, nil, nil, nil)
	authToken, event, err := c.Step(challengeTSReq)
	require.NoError(t, err)
	require.Equal(t, CredSSPContinue, event)
	require.NotEmpty(t, authToken)

	authReq, err := auth.DecodeTSRequest(authToken)
	require.NoError(t, err)
	require.Len(t, authReq.NegoTokens, 1)
	require.NotEmpty(t, authReq.PubKeyAuth)

	// Server omits pubKeyAuth verification in this fixture (no real NTLM
	// session key to encrypt with) but still must produce a credentials
	// token and reach CredSSPContinue.
	credsToken, event, err := c.Step(auth.EncodeTSRequest(nil, nil, nil))
	require.NoError(t, err)
	require.Equal(t, CredSSPContinue, event)
	require.NotEmpty(t, credsToken)

	credsReq, err := auth.DecodeTSRequest(credsToken)
	require.NoError(t, err)
	require.NotEmpty(t, credsReq.AuthInfo)

	_, event, err = c.Step(nil)
	require.NoError(t, err)
	require.Equal(t, CredSSPDone, event)
}

func TestCredSSPFinalErrorCodeMapsToFailure(t *testing.T) {
	c := NewCredSSP("DOMAIN", "user", "password", bytes.Repeat([]byte{0xCD}, 32))
	_, _, err := c.Step(nil)
	require.NoError(t, err)

	challengeTSReq := auth.EncodeTSRequestWithVersion(6, [][]byte{fakeNTLMChallenge()}, nil, nil, nil)
	_, _, err = c.Step(challengeTSReq)
	require.NoError(t, err)

	_, _, err = c.Step(auth.EncodeTSRequest(nil, nil, nil))
	require.NoError(t, err)

	finalResp := encodeTSRequestWithErrorCode(0xC000006D)
	_, event, err := c.Step(finalResp)
	require.Equal(t, CredSSPFailed, event)
	require.ErrorIs(t, err, ErrWrongPassword)
}

// encodeTSRequestWithErrorCode is a small test-only DER builder since
// internal/auth exposes no encoder for the errorCode field (the client
// never sends one, only decodes it).
func encodeTSRequestWithErrorCode(code uint32) []byte {
	inner := &bytes.Buffer{}
	inner.Write([]byte{0xA0, 0x03, 0x02, 0x01, 0x06}) // [0] version INTEGER 6
	errBuf := &bytes.Buffer{}
	errBuf.WriteByte(0x02) // INTEGER tag
	errBuf.WriteByte(4)
	binary.Write(errBuf, binary.BigEndian, code)
	tagged := append([]byte{0xA4, byte(errBuf.Len())}, errBuf.Bytes()...)
	inner.Write(tagged)

	seq := append([]byte{0x30, byte(inner.Len())}, inner.Bytes()...)
	return seq
}

func TestCredSSPStepAfterFinishedErrors(t *testing.T) {
	c := NewCredSSP("DOMAIN", "user", "password", nil)
	_, _, _ = c.Step(nil)
	challengeTSReq := auth.EncodeTSRequestWithVersion(6, [][]byte{fakeNTLMChallenge()}, nil, nil, nil)
	_, _, _ = c.Step(challengeTSReq)
	_, _, _ = c.Step(auth.EncodeTSRequest(nil, nil, nil))
	_, event, err := c.Step(nil)
	require.Equal(t, CredSSPDone, event)
	require.NoError(t, err)

	_, event, err = c.Step(nil)
	require.Equal(t, CredSSPFailed, event)
	require.Error(t, err)
}

func TestCredSSPNetworkReplyWithoutPendingRequest(t *testing.T) {
	c := NewCredSSP("DOMAIN", "user", "password", nil)

	require.Nil(t, c.PendingNetworkRequest())

	_, event, err := c.NetworkReply([]byte{0x01})
	require.Equal(t, CredSSPFailed, event)
	require.Error(t, err)
}

func TestCredSSPNTLMProviderNeverNeedsNetwork(t *testing.T) {
	c := NewCredSSP("DOMAIN", "user", "password", nil)

	// the NTLM provider computes every token locally, so a full
	// exchange never yields CredSSPNeedNetwork
	_, event, err := c.Step(nil)
	require.NoError(t, err)
	require.Equal(t, CredSSPContinue, event)
	require.Nil(t, c.PendingNetworkRequest())

	challengeTSReq := auth.EncodeTSRequestWithVersion(6, [][]byte{fakeNTLMChallenge()}, nil, nil, nil)
	_, event, err = c.Step(challengeTSReq)
	require.NoError(t, err)
	require.Equal(t, CredSSPContinue, event)
	require.Nil(t, c.PendingNetworkRequest())
}
