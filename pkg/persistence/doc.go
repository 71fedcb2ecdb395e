// Package persistence keeps the restart-durable client state: the main
// device, pinned devices, and the subscriptions and publications created
// locally, pruned as they expire.
//
// The state is one versioned JSON document stored under an
// environment-scoped namespace in a kvstore.Store, so state for different
// backend environments never collides.
package persistence
