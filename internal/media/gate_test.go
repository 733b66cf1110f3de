package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/observability"
)

func TestProbeGrantsAndLeavesNothingOpen(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())

	require.Equal(t, domain.PermissionUnknown, gate.Status(domain.DeviceMicrophone))

	status, reason := gate.Probe(context.Background(), domain.DeviceMicrophone)
	require.Equal(t, domain.PermissionGranted, status)
	require.Equal(t, domain.DenyNone, reason)
	require.Equal(t, 0, provider.LiveStreams())
	require.Equal(t, domain.PermissionGranted, gate.Status(domain.DeviceMicrophone))
}

func TestProbeClassifiesDenials(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason domain.DenyReason
	}{
		{name: "user denied", err: ErrPermissionDenied, reason: domain.DenyUserDenied},
		{name: "no device", err: ErrNoDevice, reason: domain.DenyNoDevice},
		{name: "device busy", err: ErrDeviceBusy, reason: domain.DenyDeviceBusy},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := NewFakeProvider()
			provider.FailWith(domain.DeviceCamera, tc.err)
			gate := NewGate(provider, observability.Logger())

			status, reason := gate.Probe(context.Background(), domain.DeviceCamera)
			require.Equal(t, domain.PermissionDenied, status)
			require.Equal(t, tc.reason, reason)
			require.Equal(t, 0, provider.LiveStreams())
		})
	}
}

func TestProbeAfterDenialCanRecover(t *testing.T) {
	provider := NewFakeProvider()
	provider.FailWith(domain.DeviceMicrophone, ErrPermissionDenied)
	gate := NewGate(provider, observability.Logger())

	status, _ := gate.Probe(context.Background(), domain.DeviceMicrophone)
	require.Equal(t, domain.PermissionDenied, status)

	provider.Allow(domain.DeviceMicrophone)

	status, reason := gate.Probe(context.Background(), domain.DeviceMicrophone)
	require.Equal(t, domain.PermissionGranted, status)
	require.Equal(t, domain.DenyNone, reason)
}

func TestAcquireSupersedesPreviousHandle(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())

	first, err := gate.Acquire(context.Background(), domain.DeviceMicrophone)
	require.NoError(t, err)
	require.Equal(t, 1, provider.LiveStreams())

	second, err := gate.Acquire(context.Background(), domain.DeviceMicrophone)
	require.NoError(t, err)
	require.NotSame(t, first, second)

	// The first handle must be closed before the second is live.
	require.Equal(t, 1, provider.LiveStreams())
	require.Equal(t, 1, gate.OpenCount())

	gate.ReleaseAll()
	require.Equal(t, 0, provider.LiveStreams())
	require.Equal(t, 0, gate.OpenCount())
}

func TestReleaseAllIsIdempotent(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())

	_, err := gate.Acquire(context.Background(), domain.DeviceMicrophone)
	require.NoError(t, err)
	_, err = gate.Acquire(context.Background(), domain.DeviceCamera)
	require.NoError(t, err)
	require.Equal(t, 2, provider.LiveStreams())

	gate.ReleaseAll()
	gate.ReleaseAll()
	require.Equal(t, 0, provider.LiveStreams())
}

func TestDenialMessageIsHumanReadable(t *testing.T) {
	msg := DenialMessage(domain.DeviceMicrophone, domain.DenyDeviceBusy)
	require.Contains(t, msg, "microphone")
	require.Contains(t, msg, "in use")
}
