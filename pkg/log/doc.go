// Package log records what match delivery observes: stream frames,
// ping/pong control frames, monitor and connection state changes,
// delivered matches and failures.
//
// It is separate from operational logging (slog). Monitors never return
// errors once started, so this trace and the metrics package are where
// their failures show up.
//
// Loggers compose:
//
//	file, err := log.NewFileLogger("alps.mlog")
//	if err != nil {
//		return err
//	}
//	events := log.NewMultiLogger(file, log.NewSlogAdapter(slog.Default()))
//	s, err := session.New(ctx, cfg, session.WithEventLogger(events))
//
// Setting ProtocolLogFile in the session config opens a FileLogger
// automatically.
//
// # File Format
//
// A .mlog file is a sequence of CBOR items with integer keys, one per
// Event. Reader scans it with an optional Filter. The CLI exposes this as
// "alps log view", "stats", "export" and "filter".
package log
