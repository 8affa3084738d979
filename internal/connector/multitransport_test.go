package connector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepMultitransportBootstrapping_NotOfferedFallsThrough(t *testing.T) {
	c := New(testConfig())
	c.state = StateMultitransportBootstrapping

	out, ev, err := c.Step(nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventAwaitMore, ev.Kind)
	require.Equal(t, StateCapabilitiesExchangeWaitDemand, c.State())
}

func TestStepMultitransportBootstrapping_OfferedYieldsEventAndResumes(t *testing.T) {
	c := New(testConfig())
	c.state = StateMultitransportBootstrapping
	c.multitransportOffered = true
	c.multitransportFlags = multitransportFlagUDPFECR | multitransportFlagUDPFECL

	out, ev, err := c.Step(nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventNeedMultitransport, ev.Kind)
	require.NotNil(t, ev.Multitransport)
	require.True(t, ev.Multitransport.Reliable)
	require.True(t, ev.Multitransport.Lossy)
	require.Equal(t, StateMultitransportBootstrapping, c.State())

	out, ev, err = c.ContinueMultitransport()
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventAwaitMore, ev.Kind)
	require.Equal(t, StateCapabilitiesExchangeWaitDemand, c.State())
}

func TestContinueMultitransport_OutsideStateErrors(t *testing.T) {
	c := New(testConfig())
	_, _, err := c.ContinueMultitransport()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MultitransportBootstrapping")
}
