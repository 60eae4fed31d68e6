package recognition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/pkg/extractor"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

type LoopState int

const (
	StateIdle LoopState = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var ErrLoopNotIdle = errors.New("recognition loop already started")

// EventSink receives each first sighting of a student. A sink error makes the
// loop forget the sighting so a later frame can retry it.
type EventSink interface {
	HandleRecognition(ctx context.Context, event entity.RecognitionEvent) error
}

type FrameExtractor interface {
	DetectAll(image []byte) ([]entity.DetectedFace, error)
}

// Loop drives recognition for one running session. The camera feed offers
// frames at whatever rate it likes; the loop keeps only the freshest one and
// processes it on a fixed interval, skipping ticks that would overlap a
// still-running extraction.
type Loop struct {
	sessionID string
	courseID  string
	gallery   *Gallery
	matcher   *Matcher
	frames    FrameExtractor
	sink      EventSink
	log       *logrus.Logger
	interval  time.Duration

	mu         sync.Mutex
	state      LoopState
	frame      []byte
	frameFresh bool
	inFlight   bool
	seen       map[string]struct{}
	done       chan struct{}

	events chan entity.RecognitionEvent
}

func NewLoop(logger *logrus.Logger, sessionID, courseID string, gallery *Gallery, matcher *Matcher, frames FrameExtractor, sink EventSink, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second
	}

	return &Loop{
		sessionID: sessionID,
		courseID:  courseID,
		gallery:   gallery,
		matcher:   matcher,
		frames:    frames,
		sink:      sink,
		log:       logger,
		interval:  interval,
		seen:      make(map[string]struct{}),
		events:    make(chan entity.RecognitionEvent, 32),
	}
}

func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Events delivers recognition events to the session's websocket. Slow readers
// drop events rather than stall the loop.
func (l *Loop) Events() <-chan entity.RecognitionEvent {
	return l.events
}

// SeenCount reports how many distinct students this session has recognized.
func (l *Loop) SeenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// OfferFrame replaces the pending frame. Only the newest offer before a tick
// is ever processed.
func (l *Loop) OfferFrame(frame []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateRunning && l.state != StatePaused {
		return
	}

	l.frame = append(l.frame[:0], frame...)
	l.frameFresh = true
}

func (l *Loop) Start() error {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return ErrLoopNotIdle
	}
	l.state = StateRunning
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.run(done)

	return nil
}

func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateRunning {
		l.state = StatePaused
	}
}

// Resume continues a paused session. The dedup set survives the pause, so
// students recognized before it stay recognized.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StatePaused {
		l.state = StateRunning
	}
}

// Stop ends the loop and releases the frame buffer and dedup set. A stopped
// loop cannot be restarted.
func (l *Loop) Stop() {
	l.mu.Lock()

	if l.state == StateStopped {
		l.mu.Unlock()
		return
	}

	prev := l.state
	l.state = StateStopped
	l.frame = nil
	l.frameFresh = false
	l.seen = make(map[string]struct{})

	done := l.done
	l.done = nil

	close(l.events)
	l.mu.Unlock()

	if prev != StateIdle && done != nil {
		close(done)
	}
}

func (l *Loop) run(done chan struct{}) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	l.mu.Lock()

	if l.state != StateRunning || l.inFlight || !l.frameFresh {
		l.mu.Unlock()
		return
	}

	frame := make([]byte, len(l.frame))
	copy(frame, l.frame)
	l.frameFresh = false
	l.inFlight = true

	l.mu.Unlock()

	l.process(frame)

	l.mu.Lock()
	l.inFlight = false
	l.mu.Unlock()
}

func (l *Loop) process(frame []byte) {
	faces, err := l.frames.DetectAll(frame)
	if err != nil {
		if errors.Is(err, extractor.ErrModelNotReady) {
			l.log.WithFields(log.Fields{
				"session_id": l.sessionID,
			}).Warn("Embedding service not ready, skipping frame")
			return
		}
		l.log.WithFields(log.Fields{
			"session_id": l.sessionID,
			"error":      err.Error(),
		}).Error("Failed to extract faces from frame")
		return
	}

	for _, face := range faces {
		match := l.matcher.Match(l.gallery, face.Embedding)
		if !match.Matched {
			continue
		}

		l.mu.Lock()
		if _, dup := l.seen[match.StudentID]; dup {
			l.mu.Unlock()
			continue
		}
		l.seen[match.StudentID] = struct{}{}
		l.mu.Unlock()

		event := entity.RecognitionEvent{
			SessionID:  l.sessionID,
			CourseID:   l.courseID,
			StudentID:  match.StudentID,
			Name:       match.Name,
			Distance:   match.Distance,
			ObservedAt: time.Now(),
		}

		if err := l.sink.HandleRecognition(context.Background(), event); err != nil {
			l.mu.Lock()
			delete(l.seen, match.StudentID)
			l.mu.Unlock()

			l.log.WithFields(log.Fields{
				"session_id": l.sessionID,
				"student_id": match.StudentID,
				"error":      err.Error(),
			}).Error("Failed to record recognition, will retry on a later frame")
			continue
		}

		l.emit(event)
	}
}

// emit publishes under the state lock so a concurrent Stop cannot close the
// channel mid-send.
func (l *Loop) emit(event entity.RecognitionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateStopped {
		return
	}

	select {
	case l.events <- event:
	default:
		l.log.WithFields(log.Fields{
			"session_id": l.sessionID,
			"student_id": event.StudentID,
		}).Warn("Event channel full, dropping recognition event")
	}
}
