package video

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[string]*Video
	seq    map[string]int
	next   int
	now    func() time.Time
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos: make(map[string]*Video),
		seq:    make(map[string]int),
		now:    time.Now,
	}
}

// InsertPending implements Repository.
func (r *MemoryRepository) InsertPending(_ context.Context, camera, fileName string) error {
	if err := validate(camera, fileName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[fileName]; ok {
		return nil
	}
	r.add(&Video{CameraName: camera, FileName: fileName, Pending: true})
	return nil
}

// MarkReceived implements Repository.
func (r *MemoryRepository) MarkReceived(_ context.Context, camera, fileName string) error {
	if err := validate(camera, fileName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[fileName]
	if !ok {
		v = &Video{CameraName: camera, FileName: fileName}
		r.add(v)
	}
	v.Received = true
	v.Pending = false
	return nil
}

// add stores v. Caller holds mu.
func (r *MemoryRepository) add(v *Video) {
	v.CreatedAt = r.now()
	r.videos[v.FileName] = v
	r.seq[v.FileName] = r.next
	r.next++
}

// ListByCamera implements Repository.
func (r *MemoryRepository) ListByCamera(_ context.Context, camera string) ([]Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Video
	for _, v := range r.videos {
		if v.CameraName == camera {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.seq[out[i].FileName] < r.seq[out[j].FileName]
	})
	return out, nil
}

// Verify MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)
