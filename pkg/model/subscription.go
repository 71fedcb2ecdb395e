package model

import "time"

// Subscription is a standing interest in publications on a topic within
// a range of the subscribing device.
type Subscription struct {
	ID        string `json:"id,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	WorldID   string `json:"worldId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`

	Topic string `json:"topic"`

	// Selector is evaluated by the backend against publication properties.
	Selector string `json:"selector"`

	// Range is the matching radius in meters.
	Range float64 `json:"range"`

	// Duration is the lifetime in seconds. Nil never expires.
	Duration *int64 `json:"duration,omitempty"`

	// MatchTTL is how long a match stays valid on the backend, in seconds.
	MatchTTL *int64 `json:"matchTTL,omitempty"`

	// Pushers lists delivery channel hints such as "ws".
	Pushers []string `json:"pushers,omitempty"`
}

// ExpiresAt returns the expiry instant. ok is false for subscriptions
// that never expire.
func (s Subscription) ExpiresAt() (t time.Time, ok bool) {
	return expiresAt(s.CreatedAt, s.Duration)
}

// Expired reports whether the subscription has expired at now.
func (s Subscription) Expired(now time.Time) bool {
	return expired(s.CreatedAt, s.Duration, now)
}

// Clone returns a deep copy of the subscription.
func (s Subscription) Clone() Subscription {
	c := s
	c.Duration = cloneInt64(s.Duration)
	c.MatchTTL = cloneInt64(s.MatchTTL)
	if s.Pushers != nil {
		c.Pushers = append([]string(nil), s.Pushers...)
	}
	return c
}

// Publication is a standing announcement with free-form properties that
// subscriptions select on.
type Publication struct {
	ID        string `json:"id,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	WorldID   string `json:"worldId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`

	Topic string  `json:"topic"`
	Range float64 `json:"range"`

	// Duration is the lifetime in seconds. Nil never expires.
	Duration *int64 `json:"duration,omitempty"`

	Properties map[string]any `json:"properties,omitempty"`
}

// ExpiresAt returns the expiry instant. ok is false for publications
// that never expire.
func (p Publication) ExpiresAt() (t time.Time, ok bool) {
	return expiresAt(p.CreatedAt, p.Duration)
}

// Expired reports whether the publication has expired at now.
func (p Publication) Expired(now time.Time) bool {
	return expired(p.CreatedAt, p.Duration, now)
}

// Clone returns a copy of the publication. Property values are shared.
func (p Publication) Clone() Publication {
	c := p
	c.Duration = cloneInt64(p.Duration)
	if p.Properties != nil {
		c.Properties = make(map[string]any, len(p.Properties))
		for k, v := range p.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// Seconds returns a pointer to n, for Duration and MatchTTL literals.
func Seconds(n int64) *int64 {
	return &n
}

func expiresAt(createdAt int64, duration *int64) (time.Time, bool) {
	if duration == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(createdAt).Add(time.Duration(*duration) * time.Second), true
}

// expired uses createdAt + duration <= now, so a zero duration is expired
// immediately.
func expired(createdAt int64, duration *int64, now time.Time) bool {
	t, ok := expiresAt(createdAt, duration)
	if !ok {
		return false
	}
	return !t.After(now)
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
