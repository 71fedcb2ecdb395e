package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/matchmore/alps-go/pkg/model"
)

// printResult writes v as indented JSON, or through text otherwise.
func printResult(w io.Writer, format string, v any, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func formatDevice(w io.Writer, d model.Device) {
	fmt.Fprintf(w, "%s %s %q\n", d.ID, d.Kind.String(), d.Name)
	if d.Location != nil {
		fmt.Fprintf(w, "  Location: %.6f, %.6f\n", d.Location.Latitude, d.Location.Longitude)
	}
	if d.Kind == model.KindBeacon && d.Major != nil && d.Minor != nil {
		fmt.Fprintf(w, "  Beacon: %s %d/%d\n", d.ProximityUUID, *d.Major, *d.Minor)
	}
	if len(d.Group) > 0 {
		fmt.Fprintf(w, "  Groups: %s\n", strings.Join(d.Group, ", "))
	}
}

func formatDuration(d *int64) string {
	if d == nil {
		return "never expires"
	}
	return fmt.Sprintf("%ds", *d)
}

func formatSubscription(w io.Writer, s model.Subscription) {
	fmt.Fprintf(w, "%s topic=%s range=%g (%s)\n", s.ID, s.Topic, s.Range, formatDuration(s.Duration))
	if s.Selector != "" {
		fmt.Fprintf(w, "  Selector: %s\n", s.Selector)
	}
}

func formatPublication(w io.Writer, p model.Publication) {
	fmt.Fprintf(w, "%s topic=%s range=%g (%s)\n", p.ID, p.Topic, p.Range, formatDuration(p.Duration))
	for k, v := range p.Properties {
		fmt.Fprintf(w, "  %s: %v\n", k, v)
	}
}

func formatMatch(w io.Writer, m model.Match) {
	fmt.Fprintf(w, "%s subscription=%s publication=%s\n", m.ID, m.Subscription.ID, m.Publication.ID)
}
