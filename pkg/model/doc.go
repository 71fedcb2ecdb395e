// Package model defines the Alps data model shared by the client packages.
//
// # Devices
//
// A Device is a tagged union. Its Kind selects the variant and the fields
// that must be present:
//
//	MobileDevice   platform, device token (both optional)
//	PinDevice      fixed location (required)
//	IBeaconDevice  name, major and minor (required)
//
// Identifiers are assigned by the backend. A device with a non-empty ID has
// already been created and is treated as immutable.
//
// # Subscriptions and Publications
//
// Both carry a Duration in seconds measured from CreatedAt. A nil Duration
// never expires. Expiry is local bookkeeping only; nothing is deleted on the
// backend.
//
// # Matches
//
// A Match pairs one subscription with one publication. Two matches are equal
// when their IDs are equal, regardless of the pair they reference. MatchSet
// implements the "previously seen" bookkeeping used by the monitors.
package model
