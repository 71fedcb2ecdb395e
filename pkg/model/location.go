package model

// Location is a geographic position reported for a device.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`

	HorizontalAccuracy *float64 `json:"horizontalAccuracy,omitempty"`
	VerticalAccuracy   *float64 `json:"verticalAccuracy,omitempty"`

	// CreatedAt is set by the backend, milliseconds since the Unix epoch.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// WithDefaultAltitude returns a copy whose Altitude is 0 when unset.
// The backend rejects locations without an altitude.
func (l Location) WithDefaultAltitude() Location {
	c := l.Clone()
	if c.Altitude == nil {
		var zero float64
		c.Altitude = &zero
	}
	return c
}

// Clone returns a deep copy of the location.
func (l Location) Clone() Location {
	c := l
	if l.Altitude != nil {
		v := *l.Altitude
		c.Altitude = &v
	}
	if l.HorizontalAccuracy != nil {
		v := *l.HorizontalAccuracy
		c.HorizontalAccuracy = &v
	}
	if l.VerticalAccuracy != nil {
		v := *l.VerticalAccuracy
		c.VerticalAccuracy = &v
	}
	return c
}
