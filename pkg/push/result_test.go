package push

import (
	"errors"
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		in      string
		want    Event
		wantErr bool
	}{
		{"cam1_1700000000", Event{"cam1", 1700000000}, false},
		{"front_door_12", Event{"front_door", 12}, false},
		{"malformed", Event{}, true},
		{"", Event{}, true},
		{"cam1_", Event{}, true},
		{"_12", Event{}, true},
		{"cam1_12x", Event{}, true},
	}
	for _, tt := range tests {
		got, err := ParseEvent(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEvent(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("ParseEvent(%q) error = %v, want ErrMalformedEvent", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseEvent(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestFormatMotionTime(t *testing.T) {
	if got := FormatMotionTime(1700000000, time.UTC); got != "2023-11-14 22:13:20" {
		t.Errorf("FormatMotionTime() = %q", got)
	}
	loc := time.FixedZone("UTC+2", 2*60*60)
	if got := FormatMotionTime(1700000000, loc); got != "2023-11-15 00:13:20" {
		t.Errorf("FormatMotionTime(UTC+2) = %q", got)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	got, err := DecodeEnvelope(map[string]string{"body": "Y2FtMV8x\n"})
	if err != nil || string(got) != "cam1_1" {
		t.Errorf("DecodeEnvelope() = %q, %v", got, err)
	}
	if _, err := DecodeEnvelope(map[string]string{}); !errors.Is(err, ErrMissingBody) {
		t.Errorf("DecodeEnvelope(no body) error = %v", err)
	}
	if _, err := DecodeEnvelope(map[string]string{"body": "!!"}); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("DecodeEnvelope(bad) error = %v", err)
	}
}

func TestKind_String(t *testing.T) {
	if KindFailure.String() != "Failure" || KindDownloadTrigger.String() != "DownloadTrigger" ||
		KindNotification.String() != "Notification" || Kind(9).String() != "Unknown" {
		t.Error("Kind.String() mismatch")
	}
}
