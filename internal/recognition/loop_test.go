package recognition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/pkg/extractor"
)

type fakeFrameExtractor struct {
	faces []entity.DetectedFace
	err   error
}

func (f *fakeFrameExtractor) DetectAll(image []byte) ([]entity.DetectedFace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.faces, nil
}

type recordingSink struct {
	mu      sync.Mutex
	events  []entity.RecognitionEvent
	failing bool
}

func (s *recordingSink) HandleRecognition(ctx context.Context, event entity.RecognitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("ledger unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func newTestLoop(frames FrameExtractor, sink EventSink) *Loop {
	gallery := galleryOf(
		GalleryItem{StudentID: "s1", Name: "Alya", Embedding: embeddingAt(0)},
		GalleryItem{StudentID: "s2", Name: "Bagas", Embedding: embeddingAt(5)},
	)
	return NewLoop(quietLogger(), "sess-1", "course-1", gallery, NewMatcher(0.6), frames, sink, time.Second)
}

func runningLoop(t *testing.T, frames FrameExtractor, sink EventSink) *Loop {
	t.Helper()
	l := newTestLoop(frames, sink)
	l.mu.Lock()
	l.state = StateRunning
	l.mu.Unlock()
	return l
}

func TestLoopRecognizesOncePerSession(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}}
	sink := &recordingSink{}
	l := runningLoop(t, frames, sink)

	for i := 0; i < 5; i++ {
		l.OfferFrame([]byte("frame"))
		l.tick()
	}

	if got := sink.count(); got != 1 {
		t.Errorf("sink called %d times, want 1", got)
	}
	if got := l.SeenCount(); got != 1 {
		t.Errorf("SeenCount() = %d, want 1", got)
	}

	select {
	case event := <-l.Events():
		if event.StudentID != "s1" {
			t.Errorf("event StudentID = %q, want s1", event.StudentID)
		}
		if event.SessionID != "sess-1" {
			t.Errorf("event SessionID = %q, want sess-1", event.SessionID)
		}
	default:
		t.Fatal("expected a recognition event")
	}
}

func TestLoopProcessesOnlyFreshFrames(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}}
	sink := &recordingSink{}
	l := runningLoop(t, frames, sink)

	l.OfferFrame([]byte("frame"))
	l.tick()

	// Clear the dedup set so a reprocessed frame would be visible.
	l.mu.Lock()
	l.seen = make(map[string]struct{})
	l.mu.Unlock()

	l.tick()

	if got := sink.count(); got != 1 {
		t.Errorf("sink called %d times, want 1: stale frame was reprocessed", got)
	}
}

func TestLoopRetriesAfterSinkFailure(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}}
	sink := &recordingSink{failing: true}
	l := runningLoop(t, frames, sink)

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := l.SeenCount(); got != 0 {
		t.Fatalf("SeenCount() = %d after sink failure, want 0", got)
	}

	sink.setFailing(false)

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := sink.count(); got != 1 {
		t.Errorf("sink called %d times, want 1", got)
	}
	if got := l.SeenCount(); got != 1 {
		t.Errorf("SeenCount() = %d, want 1", got)
	}
}

func TestLoopPauseAndResume(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}}
	sink := &recordingSink{}
	l := runningLoop(t, frames, sink)

	l.OfferFrame([]byte("frame"))
	l.tick()

	l.Pause()
	if got := l.State(); got != StatePaused {
		t.Fatalf("State() = %v, want paused", got)
	}

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := sink.count(); got != 1 {
		t.Errorf("sink called %d times while paused, want 1", got)
	}

	l.Resume()
	if got := l.State(); got != StateRunning {
		t.Fatalf("State() = %v, want running", got)
	}
	if got := l.SeenCount(); got != 1 {
		t.Errorf("SeenCount() = %d after resume, want 1: dedup set must survive pause", got)
	}
}

func TestLoopStopReleasesState(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}}
	sink := &recordingSink{}
	l := runningLoop(t, frames, sink)

	l.OfferFrame([]byte("frame"))
	l.tick()
	l.Stop()

	if got := l.State(); got != StateStopped {
		t.Fatalf("State() = %v, want stopped", got)
	}
	if got := l.SeenCount(); got != 0 {
		t.Errorf("SeenCount() = %d after stop, want 0", got)
	}

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := sink.count(); got != 1 {
		t.Errorf("sink called %d times after stop, want 1", got)
	}

	// Double stop is a no-op.
	l.Stop()

	// Drain the buffered event from the first tick; the channel must then
	// report closed.
	for range l.Events() {
	}
}

func TestLoopSkipsUnknownFaces(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{
		{Embedding: embeddingAt(2.5)},
		{Embedding: embeddingAt(0.2)},
	}}
	sink := &recordingSink{}
	l := runningLoop(t, frames, sink)

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := sink.count(); got != 1 {
		t.Fatalf("sink called %d times, want 1", got)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.events[0].StudentID != "s1" {
		t.Errorf("recognized %q, want s1", sink.events[0].StudentID)
	}
}

func TestLoopToleratesExtractorOutage(t *testing.T) {
	frames := &fakeFrameExtractor{err: extractor.ErrModelNotReady}
	sink := &recordingSink{}
	l := runningLoop(t, frames, sink)

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := sink.count(); got != 0 {
		t.Errorf("sink called %d times during outage, want 0", got)
	}
	if got := l.State(); got != StateRunning {
		t.Errorf("State() = %v, want running", got)
	}

	frames.err = nil
	frames.faces = []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}

	l.OfferFrame([]byte("frame"))
	l.tick()

	if got := sink.count(); got != 1 {
		t.Errorf("sink called %d times after recovery, want 1", got)
	}
}

func TestLoopStartRunsTicker(t *testing.T) {
	frames := &fakeFrameExtractor{faces: []entity.DetectedFace{{Embedding: embeddingAt(0.1)}}}
	sink := &recordingSink{}

	gallery := galleryOf(GalleryItem{StudentID: "s1", Name: "Alya", Embedding: embeddingAt(0)})
	l := NewLoop(quietLogger(), "sess-1", "course-1", gallery, NewMatcher(0.6), frames, sink, 10*time.Millisecond)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(); !errors.Is(err, ErrLoopNotIdle) {
		t.Fatalf("second Start = %v, want ErrLoopNotIdle", err)
	}

	l.OfferFrame([]byte("frame"))

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("ticker never processed the frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	l.Stop()
}
