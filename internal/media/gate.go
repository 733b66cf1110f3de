// Package media owns local device access: permission probing, stream
// acquisition, and the capture lifecycle that pairs a microphone stream
// with a speech recognizer.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// Sentinel causes for a failed device open. Providers wrap these so the gate
// can classify denials.
var (
	ErrPermissionDenied = errors.New("device access denied by user")
	ErrNoDevice         = errors.New("no such device found")
	ErrDeviceBusy       = errors.New("device already in use")
)

// ClassifyDenial maps a provider open error to a DenyReason.
func ClassifyDenial(err error) domain.DenyReason {
	switch {
	case err == nil:
		return domain.DenyNone
	case errors.Is(err, ErrPermissionDenied):
		return domain.DenyUserDenied
	case errors.Is(err, ErrNoDevice):
		return domain.DenyNoDevice
	case errors.Is(err, ErrDeviceBusy):
		return domain.DenyDeviceBusy
	default:
		return domain.DenyUnknown
	}
}

// DenialMessage renders a DenyReason as the plain-language prompt shown to
// the user. Permission problems are the only error class surfaced this way.
func DenialMessage(kind domain.DeviceKind, reason domain.DenyReason) string {
	switch reason {
	case domain.DenyUserDenied:
		return fmt.Sprintf("Access to the %s was denied. Please allow permissions and try again.", kind)
	case domain.DenyNoDevice:
		return fmt.Sprintf("No %s device found. Please connect a device and try again.", kind)
	case domain.DenyDeviceBusy:
		return fmt.Sprintf("The %s is already in use by another application. Please close other apps and try again.", kind)
	default:
		return fmt.Sprintf("Could not access the %s. Please check your device settings.", kind)
	}
}

// Gate acquires and releases device streams and tracks per-device permission
// status. At most one stream per device kind is open at a time; acquiring a
// second closes the first.
type Gate struct {
	provider domain.DeviceProvider
	logger   *slog.Logger

	mu     sync.Mutex
	status map[domain.DeviceKind]domain.PermissionStatus
	open   map[domain.DeviceKind]domain.StreamHandle
}

func NewGate(provider domain.DeviceProvider, logger *slog.Logger) *Gate {
	return &Gate{
		provider: provider,
		logger:   logger,
		status: map[domain.DeviceKind]domain.PermissionStatus{
			domain.DeviceMicrophone: domain.PermissionUnknown,
			domain.DeviceCamera:     domain.PermissionUnknown,
		},
		open: make(map[domain.DeviceKind]domain.StreamHandle),
	}
}

// Probe briefly opens and immediately closes a throwaway stream to test
// access. It never leaves a stream open. Probing is idempotent and may be
// repeated after a denial once the user re-consents.
func (g *Gate) Probe(ctx context.Context, kind domain.DeviceKind) (domain.PermissionStatus, domain.DenyReason) {
	handle, err := g.provider.Open(ctx, kind)
	if err != nil {
		reason := ClassifyDenial(err)
		g.logger.Warn("device probe failed", "device", kind, "reason", reason, "error", err)
		g.setStatus(kind, domain.PermissionDenied)
		return domain.PermissionDenied, reason
	}

	if cerr := handle.Close(); cerr != nil {
		g.logger.Warn("closing probe stream failed", "device", kind, "error", cerr)
	}

	g.setStatus(kind, domain.PermissionGranted)
	return domain.PermissionGranted, domain.DenyNone
}

// Acquire opens a persistent stream. The caller owns the handle until it is
// released through ReleaseAll or superseded by a later Acquire of the same kind.
func (g *Gate) Acquire(ctx context.Context, kind domain.DeviceKind) (domain.StreamHandle, error) {
	g.mu.Lock()
	prev := g.open[kind]
	delete(g.open, kind)
	g.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			g.logger.Warn("closing superseded stream failed", "device", kind, "error", err)
		}
	}

	handle, err := g.provider.Open(ctx, kind)
	if err != nil {
		g.setStatus(kind, domain.PermissionDenied)
		return nil, fmt.Errorf("acquire %s: %w", kind, err)
	}

	g.setStatus(kind, domain.PermissionGranted)

	g.mu.Lock()
	g.open[kind] = handle
	g.mu.Unlock()

	return handle, nil
}

// Release closes the open stream of the given kind, if any.
func (g *Gate) Release(kind domain.DeviceKind) {
	g.mu.Lock()
	handle := g.open[kind]
	delete(g.open, kind)
	g.mu.Unlock()

	if handle != nil {
		if err := handle.Close(); err != nil {
			g.logger.Warn("closing stream failed", "device", kind, "error", err)
		}
	}
}

// ReleaseAll closes every open stream. Safe to call repeatedly.
func (g *Gate) ReleaseAll() {
	g.mu.Lock()
	handles := make([]domain.StreamHandle, 0, len(g.open))
	for kind, h := range g.open {
		handles = append(handles, h)
		delete(g.open, kind)
	}
	g.mu.Unlock()

	for _, h := range handles {
		if err := h.Close(); err != nil {
			g.logger.Warn("closing stream failed", "device", h.Kind(), "error", err)
		}
	}
}

// Status returns the last observed permission status for a device kind.
func (g *Gate) Status(kind domain.DeviceKind) domain.PermissionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status[kind]
}

// OpenCount reports how many streams the gate currently holds open.
func (g *Gate) OpenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.open)
}

func (g *Gate) setStatus(kind domain.DeviceKind, s domain.PermissionStatus) {
	g.mu.Lock()
	g.status[kind] = s
	g.mu.Unlock()
}
