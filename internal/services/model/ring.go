package model

import "SignalForge/internal/domain/models"

// ring is a fixed-capacity FIFO of training samples with oldest-first
// eviction. Not safe for concurrent use; the owning Model serialises access.
type ring struct {
	data []models.TrainingSample
	head int // index of the oldest sample
	size int
}

func newRing(capacity int) *ring {
	return &ring{data: make([]models.TrainingSample, capacity)}
}

func (r *ring) push(s models.TrainingSample) {
	if r.size < len(r.data) {
		r.data[(r.head+r.size)%len(r.data)] = s
		r.size++
		return
	}
	// full: overwrite the oldest slot
	r.data[r.head] = s
	r.head = (r.head + 1) % len(r.data)
}

func (r *ring) len() int { return r.size }

func (r *ring) full() bool { return r.size == len(r.data) }

// snapshot copies the buffer contents oldest-first so a retrain can run off a
// consistent view while pushes continue.
func (r *ring) snapshot() []models.TrainingSample {
	out := make([]models.TrainingSample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(r.head+i)%len(r.data)]
	}
	return out
}
