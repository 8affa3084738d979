package connector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/security"
)

func TestStateStringKnownAndUnknown(t *testing.T) {
	require.Equal(t, "ConnectionInitiationSendRequest", StateConnectionInitiationSendRequest.String())
	require.Equal(t, "Connected", StateConnected.String())
	require.Equal(t, "Failed", StateFailed.String())
	require.Equal(t, "Unknown", State(-1).String())
	require.Equal(t, "Unknown", State(999).String())
}

func testConfig() Config {
	return Config{
		ServerName: "example.test",
		Credentials: security.Credentials{
			Domain:   "WORKGROUP",
			Username: "alice",
			Password: "hunter2",
		},
		DesktopWidth:  1024,
		DesktopHeight: 768,
		ColorDepth:    32,
	}
}

func TestNewStartsAtConnectionInitiation(t *testing.T) {
	c := New(testConfig())
	require.Equal(t, StateConnectionInitiationSendRequest, c.State())
}

func TestStepAfterTerminalStateErrors(t *testing.T) {
	c := New(testConfig())
	c.state = StateConnected

	out, ev, err := c.Step(nil)
	require.Error(t, err)
	require.Nil(t, out)
	require.Equal(t, Event{}, ev)

	c.state = StateFailed
	_, _, err = c.Step(nil)
	require.Error(t, err)
}

func TestUpgradeSecurityOutsideSecurityUpgradeStateErrors(t *testing.T) {
	c := New(testConfig())
	_, _, err := c.UpgradeSecurity()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SecurityUpgrade")
}

func TestUnhandledStateFails(t *testing.T) {
	c := New(testConfig())
	c.state = State(999)

	out, ev, err := c.Step(nil)
	require.Error(t, err)
	require.Nil(t, out)
	require.Equal(t, EventFailed, ev.Kind)
	require.Equal(t, StateFailed, c.State())
}
