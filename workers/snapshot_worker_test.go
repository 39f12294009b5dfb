package workers

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/realtime"
)

type fakeThumbs struct {
	mu      sync.Mutex
	calls   []string
	removed []string
	block   chan struct{}
	fail    bool
}

func (f *fakeThumbs) RemoveAsset(relPath string) error {
	f.mu.Lock()
	f.removed = append(f.removed, relPath)
	f.mu.Unlock()
	return nil
}

func (f *fakeThumbs) ThumbnailFromAsset(relPath string, maxSize int) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, relPath)
	f.mu.Unlock()
	if f.fail {
		return "", errors.New("decode failed")
	}
	return "thumbnails/" + relPath, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	paths   map[uint]string
	deleted map[uint]bool
	done    chan uint
}

func (f *fakeRecorder) UpdateThumbnailPath(id uint, p string) error {
	defer func() { f.done <- id }()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleted[id] {
		return gorm.ErrRecordNotFound
	}
	f.paths[id] = p
	return nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakeHub) Broadcast(e realtime.Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func TestSnapshotProcessorRecordsThumbnail(t *testing.T) {
	thumbs := &fakeThumbs{}
	rec := &fakeRecorder{paths: map[uint]string{}, done: make(chan uint, 1)}
	hub := &fakeHub{}
	sp := NewSnapshotProcessor(thumbs, rec, hub, 320, 4, 1)
	defer sp.Stop()

	if !sp.QueueJob(SnapshotJob{PinID: 3, SnapshotPath: "snapshots/snapshot_a.jpg"}) {
		t.Fatal("QueueJob rejected first job")
	}

	select {
	case id := <-rec.done:
		if id != 3 {
			t.Fatalf("recorded pin %d, want 3", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for thumbnail")
	}

	rec.mu.Lock()
	got := rec.paths[3]
	rec.mu.Unlock()
	if got != "thumbnails/snapshots/snapshot_a.jpg" {
		t.Errorf("thumbnail path = %q", got)
	}

	sp.Stop()
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.events) != 1 || hub.events[0].Type != realtime.EventPinThumbnail {
		t.Errorf("events = %+v, want one pin.thumbnail", hub.events)
	}
}

func TestSnapshotProcessorDedupAndFullQueue(t *testing.T) {
	thumbs := &fakeThumbs{block: make(chan struct{}), fail: true}
	rec := &fakeRecorder{paths: map[uint]string{}, done: make(chan uint, 4)}
	sp := NewSnapshotProcessor(thumbs, rec, nil, 320, 1, 1)

	if !sp.QueueJob(SnapshotJob{PinID: 1, SnapshotPath: "a.jpg"}) {
		t.Fatal("first job rejected")
	}
	if sp.QueueJob(SnapshotJob{PinID: 1, SnapshotPath: "a.jpg"}) {
		t.Error("duplicate job for pending pin was accepted")
	}

	// let the worker pick up pin 1 and block inside it, then fill the queue
	deadline := time.Now().Add(2 * time.Second)
	for len(sp.JobQueue) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never took the first job")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !sp.QueueJob(SnapshotJob{PinID: 2, SnapshotPath: "b.jpg"}) {
		t.Fatal("job 2 should fit in the queue")
	}
	if sp.QueueJob(SnapshotJob{PinID: 3, SnapshotPath: "c.jpg"}) {
		t.Error("job 3 should be dropped on a full queue")
	}
	sp.Mutex.Lock()
	pending3 := sp.Pending[3]
	sp.Mutex.Unlock()
	if pending3 {
		t.Error("dropped job left a pending entry")
	}

	close(thumbs.block)
	sp.Stop()
	if len(rec.paths) != 0 {
		t.Errorf("failed thumbnails should not be recorded, got %v", rec.paths)
	}
}

func TestSnapshotProcessorRemovesThumbnailOfDeletedPin(t *testing.T) {
	thumbs := &fakeThumbs{}
	rec := &fakeRecorder{paths: map[uint]string{}, deleted: map[uint]bool{9: true}, done: make(chan uint, 1)}
	hub := &fakeHub{}
	sp := NewSnapshotProcessor(thumbs, rec, hub, 320, 4, 1)

	sp.QueueJob(SnapshotJob{PinID: 9, SnapshotPath: "snapshots/snapshot_gone.jpg"})
	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
	sp.Stop()

	thumbs.mu.Lock()
	removed := thumbs.removed
	thumbs.mu.Unlock()
	if len(removed) != 1 || removed[0] != "thumbnails/snapshots/snapshot_gone.jpg" {
		t.Errorf("removed = %v, want the generated thumbnail", removed)
	}
	if len(rec.paths) != 0 {
		t.Errorf("recorded paths = %v, want none", rec.paths)
	}
	if len(hub.events) != 0 {
		t.Errorf("events = %+v, want none for a deleted pin", hub.events)
	}
}
