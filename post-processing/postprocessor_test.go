package postprocessing

import (
	"testing"
	"time"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		raw    string
		format string
		want   string
	}{
		{"/rec/recording_20240506_070809.avi", "mp4", "/rec/recording_20240506_070809.mp4"},
		{"/rec/recording_20240506_070809.avi", ".mkv", "/rec/recording_20240506_070809.mkv"},
		{"recording", "mp4", "recording.mp4"},
	}

	for _, tt := range tests {
		if got := OutputPath(tt.raw, tt.format); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.raw, tt.format, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("12.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 12500*time.Millisecond {
		t.Errorf("expected 12.5s, got %v", d)
	}

	for _, input := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseDuration(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}
