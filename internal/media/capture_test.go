package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/observability"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestCaptureStartWithoutRecognizer(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())

	capture := NewCaptureSession(gate, nil, observability.Logger())
	err := capture.Start(context.Background())
	require.ErrorIs(t, err, ErrNoSpeechSupport)
	require.Equal(t, 0, provider.LiveStreams())
}

func TestCaptureStartDeviceErrorLeavesNothingOpen(t *testing.T) {
	provider := NewFakeProvider()
	provider.FailWith(domain.DeviceMicrophone, ErrDeviceBusy)
	gate := NewGate(provider, observability.Logger())

	capture := NewCaptureSession(gate, NewScriptedRecognizer(), observability.Logger())
	err := capture.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.DenyDeviceBusy, ClassifyDenial(err))
	require.Equal(t, 0, provider.LiveStreams())
}

func TestCaptureStartRecognizerErrorReleasesStream(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())

	rec := NewScriptedRecognizer()
	rec.SetStartErr(errors.New("asr backend offline"))

	capture := NewCaptureSession(gate, rec, observability.Logger())
	err := capture.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, provider.LiveStreams())
}

func TestCaptureImmediateStopIsValidZeroLengthRecording(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())
	rec := NewScriptedRecognizer()

	capture := NewCaptureSession(gate, rec, observability.Logger())
	require.NoError(t, capture.Start(context.Background()))

	res, err := capture.Stop(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Transcript)
	require.Empty(t, res.Audio)
	require.Equal(t, 0, provider.LiveStreams())
}

func TestCaptureTranscriptReplacedWholeEachUpdate(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())
	rec := NewScriptedRecognizer()

	capture := NewCaptureSession(gate, rec, observability.Logger())
	require.NoError(t, capture.Start(context.Background()))

	rec.Emit("I worked")
	rec.Emit("I worked on a payments platform")
	waitFor(t, func() bool {
		return capture.Transcript() == "I worked on a payments platform"
	}, "live transcript update")

	rec.SetFinal("I worked on a payments platform for three years")
	res, err := capture.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "I worked on a payments platform for three years", res.Transcript)
}

func TestCaptureAccumulatesAudioAndFeedsRecognizer(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())
	rec := NewScriptedRecognizer()

	capture := NewCaptureSession(gate, rec, observability.Logger())
	require.NoError(t, capture.Start(context.Background()))

	stream := provider.LastStream(domain.DeviceMicrophone)
	require.NotNil(t, stream)

	stream.Push([]byte{1, 2, 3, 4})
	stream.Push([]byte{5, 6})
	waitFor(t, func() bool {
		return rec.FedBytes() == 6
	}, "chunks fed to recognizer")

	rec.SetFinal("counting")
	res, err := capture.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, res.Audio)
	require.Equal(t, "audio/webm;codecs=opus", res.MIMEType)
}

func TestCaptureRecognizerErrorMidCapturePreservesPartial(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())
	rec := NewScriptedRecognizer()

	capture := NewCaptureSession(gate, rec, observability.Logger())
	require.NoError(t, capture.Start(context.Background()))

	rec.Emit("partial answer before the")
	waitFor(t, func() bool {
		return capture.Transcript() != ""
	}, "live transcript before failure")

	rec.EmitError(errors.New("network"))
	waitFor(t, func() bool {
		return provider.LiveStreams() == 0
	}, "auto-stop releases the device")

	res, err := capture.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "partial answer before the", res.Transcript)
	require.Error(t, capture.RecognizerErr())
}

func TestCaptureStopIsIdempotent(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())
	rec := NewScriptedRecognizer()
	rec.SetFinal("done")

	capture := NewCaptureSession(gate, rec, observability.Logger())
	require.NoError(t, capture.Start(context.Background()))

	first, err := capture.Stop(context.Background())
	require.NoError(t, err)

	second, err := capture.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 0, provider.LiveStreams())
}

func TestCaptureDoubleStartRejected(t *testing.T) {
	provider := NewFakeProvider()
	gate := NewGate(provider, observability.Logger())
	rec := NewScriptedRecognizer()

	capture := NewCaptureSession(gate, rec, observability.Logger())
	require.NoError(t, capture.Start(context.Background()))
	require.ErrorIs(t, capture.Start(context.Background()), ErrCaptureAlreadyStarted)

	_, err := capture.Stop(context.Background())
	require.NoError(t, err)
}
