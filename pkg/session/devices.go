package session

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/matchmore/alps-go/pkg/model"
	"github.com/matchmore/alps-go/pkg/monitor"
)

// CreateDevice validates d and registers it with the backend. The
// identifier is assigned by the backend, so d.ID must be empty. When
// makeMain is set and d is a mobile device, the result becomes the
// persisted main device.
//
// Mobile devices default to the host name and the runtime OS.
func (s *Session) CreateDevice(ctx context.Context, d model.Device, makeMain bool) (model.Device, error) {
	if s.isClosed() {
		return model.Device{}, ErrSessionClosed
	}
	if d.ID != "" {
		return model.Device{}, fmt.Errorf("%w: device id %q is assigned by the backend", model.ErrValidation, d.ID)
	}
	d = d.Clone()
	if d.IsMobile() {
		if d.Name == "" {
			d.Name = hostname()
		}
		if d.Platform == "" {
			d.Platform = runtime.GOOS
		}
	}
	if err := d.Validate(); err != nil {
		return model.Device{}, err
	}

	created, err := s.backend.CreateDevice(ctx, d)
	if err != nil {
		return model.Device{}, fmt.Errorf("create %s device: %w", d.Kind, err)
	}

	if makeMain && d.IsMobile() {
		if err := s.store.SetDevice(ctx, created); err != nil {
			return created, fmt.Errorf("persist main device: %w", err)
		}
		s.debugLog("main device set", "device_id", created.ID)
	}
	return created, nil
}

// CreatePinDevice registers a pin device and records it. The requested
// location is kept on the result, since the backend response omits it.
func (s *Session) CreatePinDevice(ctx context.Context, d model.Device) (model.Device, error) {
	d.Kind = model.KindPin
	created, err := s.CreateDevice(ctx, d, false)
	if err != nil {
		return model.Device{}, err
	}

	pin := model.Device{
		ID:        created.ID,
		Name:      created.Name,
		Group:     created.Group,
		Kind:      model.KindPin,
		CreatedAt: created.CreatedAt,
		UpdatedAt: created.UpdatedAt,
		Location:  d.Location,
	}
	pin = pin.Clone()
	if err := s.store.AddPinDevice(ctx, pin); err != nil {
		return pin, fmt.Errorf("persist pin device: %w", err)
	}
	return pin, nil
}

// CreatePinDeviceAndStartListening creates a pin device and subscribes to
// its matches on channel.
func (s *Session) CreatePinDeviceAndStartListening(ctx context.Context, d model.Device, channel monitor.Channel) (model.Device, monitor.Monitor, error) {
	pin, err := s.CreatePinDevice(ctx, d)
	if err != nil {
		return model.Device{}, nil, err
	}
	m, err := s.SubscribeMatches(ctx, channel, pin.ID)
	if err != nil {
		return pin, nil, err
	}
	return pin, m, nil
}

// MainDevice returns the persisted main device.
func (s *Session) MainDevice() (model.Device, bool) {
	return s.store.Device()
}

// Pins returns the recorded pin devices.
func (s *Session) Pins() []model.Device {
	return s.store.Pins()
}

// resolveDevice returns deviceID, or the main device ID when empty.
func (s *Session) resolveDevice(deviceID string) (string, error) {
	if deviceID != "" {
		return deviceID, nil
	}
	d, ok := s.store.Device()
	if !ok {
		return "", ErrNoDevice
	}
	return d.ID, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "alps-device"
	}
	return name
}
