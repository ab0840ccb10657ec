package video

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestFileName(t *testing.T) {
	if got := FileName("porch", 1700000000); got != "video_porch_1700000000.mp4" {
		t.Errorf("FileName() = %q", got)
	}
}

// exerciseRepository runs the behaviour every Repository must share.
func exerciseRepository(t *testing.T, r Repository, camera string) {
	t.Helper()
	ctx := context.Background()

	a := FileName(camera, 1)
	b := FileName(camera, 2)

	if err := r.InsertPending(ctx, camera, a); err != nil {
		t.Fatalf("InsertPending() error = %v", err)
	}
	if err := r.InsertPending(ctx, camera, a); err != nil {
		t.Fatalf("duplicate InsertPending() error = %v", err)
	}
	if err := r.MarkReceived(ctx, camera, b); err != nil {
		t.Fatalf("MarkReceived(unknown) error = %v", err)
	}

	got, err := r.ListByCamera(ctx, camera)
	if err != nil {
		t.Fatalf("ListByCamera() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByCamera() = %d videos, want 2", len(got))
	}
	if got[0].FileName != a || !got[0].Pending || got[0].Received {
		t.Errorf("first video = %+v", got[0])
	}
	if got[1].FileName != b || got[1].Pending || !got[1].Received {
		t.Errorf("second video = %+v", got[1])
	}

	if err := r.MarkReceived(ctx, camera, a); err != nil {
		t.Fatal(err)
	}
	got, _ = r.ListByCamera(ctx, camera)
	if !got[0].Received || got[0].Pending {
		t.Errorf("after MarkReceived = %+v", got[0])
	}

	if err := r.InsertPending(ctx, "", a); !errors.Is(err, ErrInvalidVideo) {
		t.Errorf("InsertPending(\"\") error = %v", err)
	}
	if other, _ := r.ListByCamera(ctx, camera+"-other"); len(other) != 0 {
		t.Errorf("ListByCamera(other) = %v", other)
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository(), "porch")
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("CAMLINK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CAMLINK_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	r, err := OpenPostgres(ctx, PostgresConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer r.Close()

	camera := "cam-" + uuid.NewString()
	t.Cleanup(func() {
		r.pool.Exec(context.Background(), `DELETE FROM camlink_videos WHERE camera_name = $1`, camera)
	})
	exerciseRepository(t, r, camera)
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), PostgresConfig{}); !errors.Is(err, ErrDSNRequired) {
		t.Errorf("OpenPostgres() error = %v, want ErrDSNRequired", err)
	}
}
