package connector

import (
	"errors"
	"fmt"

	"github.com/go-rdp/rdpcore/internal/capset"
	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
	"github.com/go-rdp/rdpcore/internal/security"
)

// State enumerates the connection phases in order. It never regresses:
// Connected and Failed are the only terminal states.
type State int

const (
	StateConnectionInitiationSendRequest State = iota
	StateConnectionInitiationWaitConfirm
	StateSecurityUpgrade
	StateBasicSettingsExchangeSendInitial
	StateBasicSettingsExchangeWaitResponse
	StateChannelConnectionErectDomain
	StateChannelConnectionAttachUser
	StateChannelConnectionJoin
	StateSecureSettingsExchange
	StateConnectTimeAutoDetectionWait
	StateLicensingWaitResponse
	StateMultitransportBootstrapping
	StateCapabilitiesExchangeWaitDemand
	StateCapabilitiesExchangeSendConfirm
	StateFinalizationSendSync
	StateFinalizationSendControlCooperate
	StateFinalizationSendControlRequest
	StateFinalizationSendFontList
	StateFinalizationWaitSync
	StateFinalizationWaitControlCooperate
	StateFinalizationWaitControlGranted
	StateFinalizationWaitFontMap
	StateConnected
	StateFailed
)

// String names a State for diagnostics and log lines.
func (s State) String() string {
	names := [...]string{
		"ConnectionInitiationSendRequest",
		"ConnectionInitiationWaitConfirm",
		"SecurityUpgrade",
		"BasicSettingsExchangeSendInitial",
		"BasicSettingsExchangeWaitResponse",
		"ChannelConnectionErectDomain",
		"ChannelConnectionAttachUser",
		"ChannelConnectionJoin",
		"SecureSettingsExchange",
		"ConnectTimeAutoDetectionWait",
		"LicensingWaitResponse",
		"MultitransportBootstrapping",
		"CapabilitiesExchangeWaitDemand",
		"CapabilitiesExchangeSendConfirm",
		"FinalizationSendSync",
		"FinalizationSendControlCooperate",
		"FinalizationSendControlRequest",
		"FinalizationSendFontList",
		"FinalizationWaitSync",
		"FinalizationWaitControlCooperate",
		"FinalizationWaitControlGranted",
		"FinalizationWaitFontMap",
		"Connected",
		"Failed",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "Unknown"
	}
	return names[s]
}

// EventKind is what a Step call yielded.
type EventKind int

const (
	// EventSendPending means Step's out result holds data the caller must
	// flush to the transport before calling Step again.
	EventSendPending EventKind = iota
	// EventAwaitMore means the caller must supply another decoded frame
	// (via the next Step call) before the connector can progress.
	EventAwaitMore
	// EventSecurityUpgrade means the caller must perform the transport
	// handshake Protocol names (TLS, optionally followed by CredSSP) and
	// then resume by calling UpgradeSecurity.
	EventSecurityUpgrade
	// EventNeedMultitransport means the server's GCC server-multitransport
	// block requested a UDP sideband channel; the caller bootstraps it
	// (internal/transport/udp) and resumes with ContinueMultitransport.
	EventNeedMultitransport
	// EventConnected means the sequence finished successfully; Settings
	// holds everything negotiated.
	EventConnected
	// EventFailed means the sequence terminated; Err holds why. The
	// connector must not be stepped again.
	EventFailed
)

// Event is the outcome of one Step call.
type Event struct {
	Kind           EventKind
	Protocol       pdu.NegotiationProtocol // valid when Kind == EventSecurityUpgrade
	Multitransport *MultitransportOffer    // valid when Kind == EventNeedMultitransport
	Settings       *Settings               // valid when Kind == EventConnected
	Err            *Error                  // valid when Kind == EventFailed
}

// Settings is everything the connection sequence accumulated, handed to
// a session-stage runtime once the connector reaches Connected.
type Settings struct {
	SecurityProtocol pdu.NegotiationProtocol
	UserChannelID    uint16
	IOChannelID      uint16
	MessageChannelID uint16
	HasMessageChan   bool
	DesktopWidth     uint16
	DesktopHeight    uint16
	ShareID          uint32
	Channels         []capset.Channel
	Capabilities     *capset.Store
}

// Config holds the connection options the connector itself consumes;
// transport, TLS library choice, and the CredSSP credential authority
// live one layer up (internal/transport, internal/security).
type Config struct {
	ServerName        string
	Credentials       security.Credentials
	DesktopWidth      uint16
	DesktopHeight     uint16
	ColorDepth        int
	SecurityProtocols pdu.NegotiationProtocol
	StaticChannels    []string
	KeyboardLayout    uint32
	PerformanceFlags  uint32
	Autologon         bool
	RemoteApp         bool
	EnableRFX         bool
	RestrictedAdmin   bool
}

type channelJoin struct {
	name      string
	channelID uint16
	mandatory bool
}

// Connector drives one connection attempt from Init to Connected/Failed.
// It is single-use: once it yields EventConnected or EventFailed it must
// be discarded, never stepped again.
type Connector struct {
	cfg   Config
	state State
	store *capset.Store

	selectedProtocol pdu.NegotiationProtocol
	serverNegFlags   pdu.NegotiationResponseFlag
	userID           uint16
	ioChannelID      uint16
	messageChannelID uint16
	hasMessageChan   bool
	joinQueue        []channelJoin
	joinIdx          int
	shareID          uint32
	serverCapsets    []pdu.CapabilitySet

	multitransportOffered  bool
	multitransportConsumed bool
	multitransportFlags    uint32
}

// New creates a Connector ready for the first Step call, which must be
// made with a nil frame to kick off Connection Initiation.
func New(cfg Config) *Connector {
	return &Connector{
		cfg:   cfg,
		state: StateConnectionInitiationSendRequest,
		store: capset.New(),
	}
}

// State returns the connector's current phase, for diagnostics.
func (c *Connector) State() State { return c.state }

// Step advances the connection sequence by one transition. frame is the
// decoded PDU bytes the caller's reassembler produced (nil on the very
// first call, and on calls that do not need input because the previous
// Step already completed the read half of a round trip). out holds bytes
// the caller must write to the transport before the next Step call.
func (c *Connector) Step(frame []byte) (out []byte, ev Event, err error) {
	if c.state == StateConnected || c.state == StateFailed {
		return nil, Event{}, fmt.Errorf("connector: Step called after terminal state %s", c.state)
	}

	switch c.state {
	case StateConnectionInitiationSendRequest:
		return c.stepSendNegotiationRequest()
	case StateConnectionInitiationWaitConfirm:
		return c.stepWaitNegotiationConfirm(frame)
	case StateBasicSettingsExchangeSendInitial:
		return c.stepSendBasicSettings()
	case StateBasicSettingsExchangeWaitResponse:
		return c.stepWaitBasicSettings(frame)
	case StateChannelConnectionErectDomain:
		return c.stepErectDomain()
	case StateChannelConnectionAttachUser:
		return c.stepAttachUser(frame)
	case StateChannelConnectionJoin:
		return c.stepChannelJoin(frame)
	case StateSecureSettingsExchange:
		return c.stepSecureSettingsExchange()
	case StateConnectTimeAutoDetectionWait:
		return c.stepConnectTimeAutoDetection(frame)
	case StateLicensingWaitResponse:
		return c.stepLicensing(frame)
	case StateMultitransportBootstrapping:
		return c.stepMultitransportBootstrapping()
	case StateCapabilitiesExchangeWaitDemand:
		return c.stepWaitDemandActive(frame)
	case StateCapabilitiesExchangeSendConfirm:
		return c.stepSendConfirmActive()
	case StateFinalizationSendSync:
		return c.stepSendSync()
	case StateFinalizationWaitSync:
		return c.stepWaitFinalization(frame)
	case StateFinalizationSendControlCooperate:
		return c.stepSendControlCooperate()
	case StateFinalizationWaitControlCooperate:
		return c.stepWaitFinalization(frame)
	case StateFinalizationSendControlRequest:
		return c.stepSendControlRequest()
	case StateFinalizationWaitControlGranted:
		return c.stepWaitFinalization(frame)
	case StateFinalizationSendFontList:
		return c.stepSendFontList()
	case StateFinalizationWaitFontMap:
		return c.stepWaitFinalization(frame)
	default:
		return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: unhandled state %s", c.state))
	}
}

// FailSecurityUpgrade records that the transport-level handshake
// EventSecurityUpgrade asked for could not be completed (a TLS failure,
// or a CredSSP exchange the server rejected) and moves the connector to
// its terminal Failed state. The security package's sentinel errors map
// onto the matching failure kinds so a logon denial surfaces as
// LogonFailure rather than a generic upgrade failure.
func (c *Connector) FailSecurityUpgrade(err error) Event {
	kind := FailureSecurityUpgrade
	switch {
	case errors.Is(err, security.ErrWrongPassword):
		kind = FailureWrongPassword
	case errors.Is(err, security.ErrLogonFailure):
		kind = FailureLogonFailure
	case errors.Is(err, security.ErrAccessDenied):
		kind = FailureAccessDenied
	}

	_, ev, _ := c.fail(kind, c.state.String(), err)
	return ev
}

// UpgradeSecurity resumes the sequence after the caller has performed (or
// skipped, for legacy RDP security) the transport-level handshake
// EventSecurityUpgrade asked for, and sends the MCS Connect Initial that
// opens Basic Settings Exchange.
func (c *Connector) UpgradeSecurity() (out []byte, ev Event, err error) {
	if c.state != StateSecurityUpgrade {
		return nil, Event{}, fmt.Errorf("connector: UpgradeSecurity called outside SecurityUpgrade state (in %s)", c.state)
	}
	c.state = StateBasicSettingsExchangeSendInitial
	return c.stepSendBasicSettings()
}

func (c *Connector) fail(kind FailureKind, state string, err error) ([]byte, Event, error) {
	c.state = StateFailed
	cerr := asError(kind, state, err)
	return nil, Event{Kind: EventFailed, Err: cerr}, cerr
}
