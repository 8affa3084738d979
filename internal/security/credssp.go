package security

import (
	"crypto/rand"
	"fmt"

	"github.com/go-rdp/rdpcore/internal/auth"
)

// CredSSPEvent reports what happened after a Step call.
type CredSSPEvent int

const (
	// CredSSPContinue means outgoingToken must be sent to the server and
	// Step called again with its reply.
	CredSSPContinue CredSSPEvent = iota
	// CredSSPNeedNetwork means the token provider must round-trip with
	// an external credential authority before the exchange can continue:
	// the caller performs PendingNetworkRequest and resumes with
	// NetworkReply instead of Step.
	CredSSPNeedNetwork
	// CredSSPDone means authentication succeeded; no further tokens.
	CredSSPDone
	// CredSSPFailed means the exchange cannot continue; err is set.
	CredSSPFailed
)

// NetworkRequest is one round trip to an external credential authority
// (a KDC, for a Kerberos-backed token provider): the caller sends Data
// to Address over Protocol and feeds the raw response back through
// NetworkReply.
type NetworkRequest struct {
	Protocol string // "tcp" or "udp"
	Address  string
	Data     []byte
}

type credsspState int

const (
	credsspInit credsspState = iota
	credsspNegotiateSent
	credsspAuthenticateSent
	credsspCredentialsSent
	credsspFinished
)

// CredSSP drives the TSRequest/NTLMv2 exchange (MS-CSSP) as a pure
// Step(serverToken) -> (outgoingToken, event, err) state machine. It
// performs no I/O itself; the caller (internal/connector) is
// responsible for writing outgoingToken to the transport and handing
// back whatever bytes arrive in response.
type CredSSP struct {
	domain, user, password string
	peerSPKI               []byte

	state       credsspState
	ntlm        *auth.NTLMv2
	ntlmSec     *auth.Security
	clientNonce []byte
	clientPub   []byte
	version     int

	pendingNetwork *NetworkRequest
}

// NewCredSSP constructs a CredSSP state machine for one connection
// attempt. peerSPKI is the server's raw SubjectPublicKeyInfo from the
// TLS handshake UpgradeTLS just completed (public-key binding requires
// it per MS-CSSP 3.1.5).
func NewCredSSP(domain, user, password string, peerSPKI []byte) *CredSSP {
	return &CredSSP{
		domain:   domain,
		user:     user,
		password: password,
		peerSPKI: peerSPKI,
	}
}

// PendingNetworkRequest returns the credential-authority round trip a
// CredSSPNeedNetwork event asked for, or nil when none is outstanding.
func (c *CredSSP) PendingNetworkRequest() *NetworkRequest {
	return c.pendingNetwork
}

// NetworkReply feeds the credential authority's response back into the
// exchange and re-enters the step function. Only valid after a
// CredSSPNeedNetwork event. The NTLM token provider bundled here
// computes everything locally and never yields that event, so with it
// NetworkReply always fails; a Kerberos-backed provider plugs its KDC
// round trips through this pair.
func (c *CredSSP) NetworkReply(data []byte) (outgoingToken []byte, event CredSSPEvent, err error) {
	if c.pendingNetwork == nil {
		return nil, CredSSPFailed, fmt.Errorf("security: NetworkReply without a pending network request")
	}

	c.pendingNetwork = nil

	return c.Step(data)
}

// Step advances the exchange. On the first call serverToken must be
// nil; every subsequent call passes whatever the server sent back for
// the previous outgoingToken.
func (c *CredSSP) Step(serverToken []byte) (outgoingToken []byte, event CredSSPEvent, err error) {
	if c.pendingNetwork != nil {
		return nil, CredSSPFailed, fmt.Errorf("security: Step called while a network request is pending; use NetworkReply")
	}

	switch c.state {
	case credsspInit:
		return c.stepInit()
	case credsspNegotiateSent:
		return c.stepNegotiateSent(serverToken)
	case credsspAuthenticateSent:
		return c.stepAuthenticateSent(serverToken)
	case credsspCredentialsSent:
		return c.stepCredentialsSent(serverToken)
	default:
		return nil, CredSSPFailed, fmt.Errorf("security: CredSSP.Step called after completion")
	}
}

func (c *CredSSP) stepInit() ([]byte, CredSSPEvent, error) {
	c.ntlm = auth.NewNTLMv2(c.domain, c.user, c.password)

	c.clientNonce = make([]byte, 32)
	if _, err := rand.Read(c.clientNonce); err != nil {
		return nil, CredSSPFailed, fmt.Errorf("security: generating client nonce: %w", err)
	}

	negoMsg := c.ntlm.GetNegotiateMessage()
	token := auth.EncodeTSRequestWithNonce([][]byte{negoMsg}, nil, nil, c.clientNonce)

	c.state = credsspNegotiateSent
	return token, CredSSPContinue, nil
}

func (c *CredSSP) stepNegotiateSent(serverToken []byte) ([]byte, CredSSPEvent, error) {
	tsResp, err := auth.DecodeTSRequest(serverToken)
	if err != nil {
		return nil, CredSSPFailed, fmt.Errorf("security: decoding server challenge: %w", err)
	}
	if len(tsResp.NegoTokens) == 0 {
		return nil, CredSSPFailed, fmt.Errorf("security: server sent no challenge token")
	}
	c.version = tsResp.Version

	authMsg, ntlmSec := c.ntlm.GetAuthenticateMessage(tsResp.NegoTokens[0].Data)
	if authMsg == nil || ntlmSec == nil {
		return nil, CredSSPFailed, fmt.Errorf("security: failed to build NTLM authenticate message")
	}
	c.ntlmSec = ntlmSec

	pubKeyData := c.peerSPKI
	if c.version >= 5 {
		pubKeyData = auth.ComputeClientPubKeyAuth(c.version, c.peerSPKI, c.clientNonce)
	}
	c.clientPub = pubKeyData

	encryptedPubKey := c.ntlmSec.GssEncrypt(pubKeyData)
	token := auth.EncodeTSRequestWithNonce([][]byte{authMsg}, nil, encryptedPubKey, c.clientNonce)

	c.state = credsspAuthenticateSent
	return token, CredSSPContinue, nil
}

func (c *CredSSP) stepAuthenticateSent(serverToken []byte) ([]byte, CredSSPEvent, error) {
	tsResp, err := auth.DecodeTSRequest(serverToken)
	if err != nil {
		return nil, CredSSPFailed, fmt.Errorf("security: decoding public key response: %w", err)
	}

	if len(tsResp.PubKeyAuth) > 0 {
		decrypted := c.ntlmSec.GssDecrypt(tsResp.PubKeyAuth)
		if decrypted == nil {
			return nil, CredSSPFailed, fmt.Errorf("security: failed to decrypt server pubKeyAuth")
		}
		if !auth.VerifyServerPubKeyAuth(c.version, decrypted, c.peerSPKI, c.clientNonce) {
			return nil, CredSSPFailed, fmt.Errorf("security: server pubKeyAuth verification failed")
		}
	}

	domainBytes, userBytes, passBytes := c.ntlm.GetEncodedCredentials()
	credentials := auth.EncodeCredentials(domainBytes, userBytes, passBytes)
	encryptedCreds := c.ntlmSec.GssEncrypt(credentials)
	token := auth.EncodeTSRequest(nil, encryptedCreds, nil)

	c.state = credsspCredentialsSent
	return token, CredSSPContinue, nil
}

// stepCredentialsSent handles the optional final server round-trip.
// Some servers accept credentials silently (the caller should treat a
// transport-level read timeout as success and call Step with a nil
// token to finish cleanly); others send one last TSRequest carrying an
// ErrorCode.
func (c *CredSSP) stepCredentialsSent(serverToken []byte) ([]byte, CredSSPEvent, error) {
	c.state = credsspFinished
	if len(serverToken) == 0 {
		return nil, CredSSPDone, nil
	}

	finalResp, err := auth.DecodeTSRequest(serverToken)
	if err != nil {
		// A malformed trailing message still means the preceding
		// exchange already authenticated; treat it as success.
		return nil, CredSSPDone, nil
	}
	if finalResp.ErrorCode != 0 {
		return nil, CredSSPFailed, mapCredSSPError(finalResp.ErrorCode)
	}
	return nil, CredSSPDone, nil
}

// mapCredSSPError turns an NTSTATUS-shaped CredSSP error code into one
// of the connector's failure kinds.
func mapCredSSPError(code uint32) error {
	switch code {
	case 0xC000006D, 0xC000006A: // STATUS_LOGON_FAILURE, STATUS_WRONG_PASSWORD
		return fmt.Errorf("%w: credssp error code 0x%08X", ErrWrongPassword, code)
	case 0xC0000234: // STATUS_ACCOUNT_LOCKED_OUT
		return fmt.Errorf("%w: credssp error code 0x%08X", ErrAccessDenied, code)
	default:
		return fmt.Errorf("%w: credssp error code 0x%08X", ErrLogonFailure, code)
	}
}
