package log

import "testing"

func TestEnumNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionOut.String(), "OUT"},
		{LayerBackend.String(), "BACKEND"},
		{CategoryMatch.String(), "MATCH"},
		{StateEntityMonitor.String(), "MONITOR"},
		{ControlMsgClose.String(), "CLOSE"},
		{Layer(42).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if l, err := ParseLayer("monitor"); err != nil || l != LayerMonitor {
		t.Errorf("ParseLayer(monitor) = %v, %v", l, err)
	}
	if d, err := ParseDirection("In"); err != nil || d != DirectionIn {
		t.Errorf("ParseDirection(In) = %v, %v", d, err)
	}
	if c, err := ParseCategory("CONTROL"); err != nil || c != CategoryControl {
		t.Errorf("ParseCategory(CONTROL) = %v, %v", c, err)
	}
	for _, bad := range []string{"", "wire", "message"} {
		if _, err := ParseCategory(bad); err == nil {
			t.Errorf("ParseCategory(%q) succeeded", bad)
		}
	}
}
