package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matchmore/alps-go/pkg/log"
)

// LogOptions holds the event filter flags of the log commands.
type LogOptions struct {
	*RootOptions
	ConnID    string
	DeviceID  string
	Channel   string
	MatchID   string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// NewLogCommand creates the log command group for protocol log files.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect protocol log files",
	}
	cmd.AddCommand(newLogViewCommand(rootOpts))
	cmd.AddCommand(newLogStatsCommand(rootOpts))
	cmd.AddCommand(newLogExportCommand(rootOpts))
	cmd.AddCommand(newLogFilterCommand(rootOpts))
	return cmd
}

func (o *LogOptions) addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ConnID, "conn-id", "", "filter by connection ID")
	cmd.Flags().StringVar(&o.DeviceID, "device", "", "filter by device ID")
	cmd.Flags().StringVar(&o.Channel, "channel", "", "filter by channel (polling, websocket)")
	cmd.Flags().StringVar(&o.MatchID, "match", "", "filter by match ID")
	cmd.Flags().StringVar(&o.TimeStart, "time-start", "", "events at or after this RFC3339 time")
	cmd.Flags().StringVar(&o.TimeEnd, "time-end", "", "events before this RFC3339 time")
	cmd.Flags().StringVar(&o.Layer, "layer", "", "filter by layer (transport, backend, monitor)")
	cmd.Flags().StringVar(&o.Direction, "direction", "", "filter by direction (in, out)")
	cmd.Flags().StringVar(&o.Category, "category", "", "filter by category (frame, control, state, error, match)")
}

// Filter builds the reader filter from the flags.
func (o *LogOptions) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		DeviceID:     o.DeviceID,
		Channel:      o.Channel,
		MatchID:      o.MatchID,
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := log.ParseLayer(o.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := log.ParseDirection(o.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := log.ParseCategory(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	return filter, nil
}

func newLogViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "view <file.mlog>",
		Short: "View a log file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.Filter()
			if err != nil {
				return err
			}
			return RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	opts.addFilterFlags(cmd)
	return cmd
}

func newLogStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.mlog>",
		Short: "Show statistics about a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunStats(args[0], cmd.OutOrStdout())
		},
	}
}

func newLogExportCommand(rootOpts *RootOptions) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <file.mlog>",
		Short: "Export a log file to JSONL or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return RunExport(args[0], format, w)
		},
	}
	cmd.Flags().StringVar(&format, "to", "jsonl", "output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newLogFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}
	var output string
	cmd := &cobra.Command{
		Use:   "filter <file.mlog>",
		Short: "Filter a log file into a new log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.Filter()
			if err != nil {
				return err
			}
			n, err := RunFilter(args[0], filter, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, output)
			return nil
		},
	}
	opts.addFilterFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// eachEvent calls fn for every event of reader.
func eachEvent(reader *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView writes the events of path matching filter to w.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	return eachEvent(reader, func(e log.Event) error {
		formatEvent(w, e)
		return nil
	})
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, shortenConnID(event.ConnectionID),
		event.Direction.String(), layer, eventType(event))
	if event.DeviceID != "" {
		fmt.Fprintf(w, " device=%s", event.DeviceID)
	}
	if event.Channel != "" {
		fmt.Fprintf(w, " channel=%s", event.Channel)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Frame.Size)
		if event.Frame.Data != "" {
			fmt.Fprintf(w, "  Data: %s\n", event.Frame.Data)
		}
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Match != nil:
		fmt.Fprintf(w, "  Match: %s\n", event.Match.MatchID)
		if event.Match.SubscriptionID != "" || event.Match.PublicationID != "" {
			fmt.Fprintf(w, "  Subscription: %s  Publication: %s\n",
				event.Match.SubscriptionID, event.Match.PublicationID)
		}
		if event.Match.BatchSize > 0 {
			fmt.Fprintf(w, "  Batch: %d\n", event.Match.BatchSize)
		}
	case event.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", event.Error.Layer.String())
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Code != nil {
			fmt.Fprintf(w, "  Code: %d\n", *event.Error.Code)
		}
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.Match != nil:
		return "Match"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MatchesByDevice   map[string]int
	Connections       map[string]*ConnectionStats
	Errors            int
	Start, End        time.Time
}

// ConnectionStats holds statistics for a single connection or poll loop.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	DeviceID  string
	Channel   string
}

// CollectStats reads path and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MatchesByDevice:   make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}
	err = eachEvent(reader, func(event log.Event) error {
		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.Start.IsZero() || event.Timestamp.Before(stats.Start) {
			stats.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.End) {
			stats.End = event.Timestamp
		}

		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if conn.DeviceID == "" {
			conn.DeviceID = event.DeviceID
		}
		if conn.Channel == "" {
			conn.Channel = event.Channel
		}

		if event.Match != nil {
			stats.MatchesByDevice[event.DeviceID]++
		}
		if event.Error != nil {
			stats.Errors++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Alps Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", stats.Start.Format(time.RFC3339), stats.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.End.Sub(stats.Start).Round(time.Second))
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerBackend, log.LayerMonitor} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryFrame, log.CategoryControl, log.CategoryState, log.CategoryError, log.CategoryMatch} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MatchesByDevice) > 0 {
		fmt.Fprintln(w, "Matches by Device:")
		devices := make([]string, 0, len(stats.MatchesByDevice))
		for d := range stats.MatchesByDevice {
			devices = append(devices, d)
		}
		sort.Strings(devices)
		for _, d := range devices {
			fmt.Fprintf(w, "  %s: %d\n", d, stats.MatchesByDevice[d])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	ids := make([]string, 0, len(stats.Connections))
	for id := range stats.Connections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return stats.Connections[ids[i]].FirstSeen.Before(stats.Connections[ids[j]].FirstSeen)
	})
	for _, id := range ids {
		c := stats.Connections[id]
		fmt.Fprintf(w, "  [%s] %d events, duration %s", shortenConnID(id), c.Events,
			c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
		if c.Channel != "" {
			fmt.Fprintf(w, ", %s", c.Channel)
		}
		if c.DeviceID != "" {
			fmt.Fprintf(w, ", device %s", c.DeviceID)
		}
		fmt.Fprintln(w)
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

// RunExport writes the events of path to w as JSONL or CSV.
func RunExport(path, format string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return eachEvent(reader, func(e log.Event) error {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		cw := csv.NewWriter(w)
		defer cw.Flush()
		header := []string{"timestamp", "connection_id", "direction", "layer", "category", "channel", "device_id", "type", "match_id"}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		return eachEvent(reader, func(e log.Event) error {
			matchID := ""
			switch {
			case e.Match != nil:
				matchID = e.Match.MatchID
			case e.Frame != nil:
				matchID = e.Frame.Data
			}
			row := []string{
				e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
				e.ConnectionID,
				e.Direction.String(),
				e.Layer.String(),
				e.Category.String(),
				e.Channel,
				e.DeviceID,
				strings.ToLower(eventType(e)),
				matchID,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
			return nil
		})
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// RunFilter copies the events of path matching filter to output and
// returns how many were written.
func RunFilter(path string, filter log.Filter, output string) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}

	err = eachEvent(reader, func(e log.Event) error {
		logger.Log(e)
		return nil
	})
	if cerr := logger.Close(); err == nil {
		err = cerr
	}
	return logger.Count(), err
}
