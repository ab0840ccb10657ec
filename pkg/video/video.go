// Package video records motion clips announced by push notifications and
// tracks which of them have been fetched from the camera.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Video errors.
var (
	// ErrInvalidVideo is returned when the camera or file name is empty.
	ErrInvalidVideo = errors.New("video: invalid video")

	// ErrDSNRequired is returned when a Postgres repository has no DSN or pool.
	ErrDSNRequired = errors.New("video: postgres dsn required")
)

// Video is one motion clip.
type Video struct {
	CameraName string
	FileName   string

	// Received is set once the clip has been downloaded.
	Received bool

	// Pending is set while the clip is announced but not yet downloaded.
	Pending bool

	CreatedAt time.Time
}

// FileName returns the clip name for a motion event.
func FileName(camera string, seconds int64) string {
	return fmt.Sprintf("video_%s_%d.mp4", camera, seconds)
}

// Repository persists videos. Implementations are safe for concurrent use.
type Repository interface {
	// InsertPending records an announced clip. Inserting a name that already
	// exists is a no-op.
	InsertPending(ctx context.Context, camera, fileName string) error

	// MarkReceived records that a clip was downloaded, inserting it if it was
	// never announced.
	MarkReceived(ctx context.Context, camera, fileName string) error

	// ListByCamera returns the clips of camera, oldest first.
	ListByCamera(ctx context.Context, camera string) ([]Video, error)
}

func validate(camera, fileName string) error {
	if camera == "" || fileName == "" {
		return ErrInvalidVideo
	}
	return nil
}
