package model

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every error caused by caller input that
// must not be retried (missing field, empty device ID, unknown channel).
var ErrValidation = errors.New("validation failed")

// DeviceKind tags the Device variant. The values are the backend's
// deviceType discriminator.
type DeviceKind string

const (
	// KindMobile is a phone or other moving device. Only mobile devices
	// can become the main device.
	KindMobile DeviceKind = "MobileDevice"

	// KindPin is a device pinned to a fixed location.
	KindPin DeviceKind = "PinDevice"

	// KindBeacon is an iBeacon identified by proximity UUID, major and minor.
	KindBeacon DeviceKind = "IBeaconDevice"
)

// String returns the variant name.
func (k DeviceKind) String() string {
	switch k {
	case KindMobile:
		return "MOBILE"
	case KindPin:
		return "PIN"
	case KindBeacon:
		return "IBEACON"
	default:
		return "UNKNOWN"
	}
}

// Device is an addressable, location-aware entity that can publish and
// subscribe. Fields outside the variant selected by Kind are ignored.
type Device struct {
	// ID is assigned by the backend on creation.
	ID string `json:"id,omitempty"`

	// Name is a human readable label. Required for beacons.
	Name string `json:"name,omitempty"`

	// Group lists the groups the device belongs to.
	Group []string `json:"group,omitempty"`

	// Kind selects the variant.
	Kind DeviceKind `json:"deviceType"`

	// CreatedAt and UpdatedAt are milliseconds since the Unix epoch.
	CreatedAt int64 `json:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`

	// Platform and DeviceToken describe a mobile device.
	Platform    string `json:"platform,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`

	// Location is the fixed position of a pin device.
	Location *Location `json:"location,omitempty"`

	// ProximityUUID, Major and Minor identify an iBeacon.
	ProximityUUID string `json:"proximityUUID,omitempty"`
	Major         *int32 `json:"major,omitempty"`
	Minor         *int32 `json:"minor,omitempty"`
}

// NewMobileDevice returns a mobile device description.
func NewMobileDevice(name string) Device {
	return Device{Kind: KindMobile, Name: name}
}

// NewPinDevice returns a pin device description at loc.
func NewPinDevice(name string, loc Location) Device {
	return Device{Kind: KindPin, Name: name, Location: &loc}
}

// NewBeaconDevice returns an iBeacon device description.
func NewBeaconDevice(name, proximityUUID string, major, minor int32) Device {
	return Device{
		Kind:          KindBeacon,
		Name:          name,
		ProximityUUID: proximityUUID,
		Major:         &major,
		Minor:         &minor,
	}
}

// Validate checks the fields required by the device variant.
func (d Device) Validate() error {
	switch d.Kind {
	case KindMobile:
		return nil
	case KindPin:
		if d.Location == nil {
			return fmt.Errorf("%w: location required for pin device", ErrValidation)
		}
		return nil
	case KindBeacon:
		if d.Major == nil {
			return fmt.Errorf("%w: major required for iBeacon device", ErrValidation)
		}
		if d.Minor == nil {
			return fmt.Errorf("%w: minor required for iBeacon device", ErrValidation)
		}
		if d.Name == "" {
			return fmt.Errorf("%w: name required for iBeacon device", ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown device kind %q", ErrValidation, d.Kind)
	}
}

// IsMobile reports whether the device is the mobile variant.
func (d Device) IsMobile() bool {
	return d.Kind == KindMobile
}

// Assigned reports whether the backend has assigned an identifier.
func (d Device) Assigned() bool {
	return d.ID != ""
}

// Clone returns a deep copy of the device.
func (d Device) Clone() Device {
	c := d
	if d.Group != nil {
		c.Group = append([]string(nil), d.Group...)
	}
	if d.Location != nil {
		loc := d.Location.Clone()
		c.Location = &loc
	}
	if d.Major != nil {
		v := *d.Major
		c.Major = &v
	}
	if d.Minor != nil {
		v := *d.Minor
		c.Minor = &v
	}
	return c
}
