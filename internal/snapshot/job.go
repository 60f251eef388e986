package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"webshop/internal/manifest"
	"webshop/internal/metrics"
)

// CaptureFunc returns the state to persist and the changelog offset it covers.
type CaptureFunc func() (State, int64, error)

// Job writes a snapshot and then points the manifest at it.
type Job struct {
	snap    Snapshotter
	pub     manifest.Publisher
	capture CaptureFunc
	metrics *metrics.Registry
	now     func() time.Time
}

func NewJob(snap Snapshotter, pub manifest.Publisher, capture CaptureFunc, m *metrics.Registry) *Job {
	return &Job{snap: snap, pub: pub, capture: capture, metrics: m, now: time.Now}
}

// Run takes one snapshot and returns its id.
func (j *Job) Run(ctx context.Context) (string, error) {
	st, offset, err := j.capture()
	if err != nil {
		return "", fmt.Errorf("capture state: %w", err)
	}
	id := NewID(j.now())
	if err := j.snap.WriteSnapshot(id, st); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := j.pub.PublishLatest(ctx, id, offset); err != nil {
		return "", fmt.Errorf("publish manifest: %w", err)
	}
	j.metrics.Snapshots.Inc()
	log.Printf("snapshot: %s published (products=%d orders=%d offset=%d)", id, len(st.Products), len(st.Orders), offset)
	return id, nil
}

// Loop snapshots every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (j *Job) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				log.Printf("snapshot: %v", err)
			}
		}
	}
}
