// Package session coordinates devices, subscriptions, publications and
// match monitors for one backend environment.
//
// A Session owns the persisted state, the background tasks (expiry
// pruning and the optional location service) and the monitor registry.
// The registry holds at most one monitor per device: installing a monitor
// for a device stops the previous one first, so two monitors for the same
// device never deliver at the same time.
//
// Sessions are explicit values. Configure additionally enforces a single
// live process-wide session. New is the unguarded constructor used by
// tests and by programs that embed more than one session.
//
// Match handlers may call back into the session, including Cleanup and
// SubscribeMatches for the device being delivered.
//
//	s, err := session.Configure(ctx, config.WithAPIKey(key))
//	if err != nil {
//		return err
//	}
//	defer s.Cleanup()
//
//	s.OnMatch(func(deviceID string, matches []model.Match) { ... })
//	if _, err := s.SubscribeMatches(ctx, monitor.ChannelWebsocket, ""); err != nil {
//		return err
//	}
package session
