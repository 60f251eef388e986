package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"webshop/internal/manifest"
	"webshop/internal/metrics"
	"webshop/internal/model"
)

func TestJob_RunWritesSnapshotAndManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snaps := NewFilesystemSnapshotter(dir)
	mf := manifest.NewFilesystemManifest(dir)
	m := metrics.NewRegistry()

	capture := func() (State, int64, error) {
		return State{Products: []model.Product{{ID: 1, Stock: 4}}}, 17, nil
	}
	j := NewJob(snaps, mf, capture, m)
	j.now = func() time.Time { return time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC) }

	id, err := j.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	latest, err := mf.ReadLatest(ctx)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if latest.SnapshotID != id || latest.LastChangelogOffset != 17 {
		t.Fatalf("unexpected manifest: %+v (id %s)", latest, id)
	}
	st, err := snaps.ReadSnapshot(id)
	if err != nil || len(st.Products) != 1 || st.Products[0].Stock != 4 {
		t.Fatalf("snapshot content: %+v %v", st, err)
	}
	if got := testutil.ToFloat64(m.Snapshots); got != 1 {
		t.Fatalf("snapshots metric = %v", got)
	}
}

func TestJob_CaptureFailurePublishesNothing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mf := manifest.NewFilesystemManifest(dir)
	j := NewJob(NewFilesystemSnapshotter(dir), mf, func() (State, int64, error) {
		return State{}, 0, errors.New("store offline")
	}, metrics.NewRegistry())
	if _, err := j.Run(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := mf.ReadLatest(ctx); !errors.Is(err, manifest.ErrNoManifest) {
		t.Fatalf("manifest published despite failure: %v", err)
	}
}

func TestJob_LoopStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	var (
		mu    sync.Mutex
		calls int
	)
	j := NewJob(NewFilesystemSnapshotter(dir), manifest.NewFilesystemManifest(dir), func() (State, int64, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return State{}, 0, nil
	}, metrics.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Loop(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(40 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Fatalf("loop never ran")
	}
}
