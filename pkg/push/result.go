package push

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a handled push.
type Kind int

const (
	// KindFailure means the push could not be decoded or parsed.
	KindFailure Kind = iota

	// KindDownloadTrigger means the camera signalled new footage without
	// event data.
	KindDownloadTrigger

	// KindNotification means the push carried a motion event.
	KindNotification
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFailure:
		return "Failure"
	case KindDownloadTrigger:
		return "DownloadTrigger"
	case KindNotification:
		return "Notification"
	default:
		return "Unknown"
	}
}

// Event is a motion event carried by a push.
type Event struct {
	CameraName       string
	TimestampSeconds int64
}

// Result is the outcome of handling one push.
type Result struct {
	Kind Kind

	// Event is set for KindNotification.
	Event Event

	// Err is the cause for KindFailure. For other kinds it reports a failed
	// follow-up step such as enqueueing or recording; the classification
	// still stands.
	Err error
}

func failure(err error) Result {
	return Result{Kind: KindFailure, Err: err}
}

// ParseEvent parses "<camera>_<seconds>". The camera name may itself contain
// underscores; the timestamp follows the last one.
func ParseEvent(text string) (Event, error) {
	i := strings.LastIndex(text, "_")
	if i <= 0 || i == len(text)-1 {
		return Event{}, fmt.Errorf("%w: %q", ErrMalformedEvent, text)
	}
	ts, err := strconv.ParseInt(text[i+1:], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %q: %v", ErrMalformedEvent, text, err)
	}
	return Event{CameraName: text[:i], TimestampSeconds: ts}, nil
}

// MotionTimeLayout is the display layout for motion timestamps.
const MotionTimeLayout = "2006-01-02 15:04:05"

// FormatMotionTime renders epoch seconds as a calendar time in loc for
// display. A nil loc means time.Local.
func FormatMotionTime(seconds int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(seconds, 0).In(loc).Format(MotionTimeLayout)
}
