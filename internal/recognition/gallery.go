package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/pkg/extractor"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

// GalleryItem is one reference embedding. A student enrolled with several
// photos contributes several items under the same identity.
type GalleryItem struct {
	StudentID string
	Name      string
	Embedding entity.Embedding
}

// ExcludedStudent records a roster member whose references could not be
// prepared during a gallery build. The session still starts without them.
type ExcludedStudent struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

// Gallery is an immutable snapshot of a course's reference embeddings, built
// once at session start. Enrollment changes after the build are not visible
// until the next session.
type Gallery struct {
	courseID string
	items    []GalleryItem
	excluded []ExcludedStudent
	builtAt  time.Time
}

func (g *Gallery) CourseID() string            { return g.courseID }
func (g *Gallery) Size() int                   { return len(g.items) }
func (g *Gallery) Excluded() []ExcludedStudent { return g.excluded }
func (g *Gallery) BuiltAt() time.Time          { return g.builtAt }

// Identities returns the distinct student count, which can be smaller than
// Size when students carry multiple reference photos.
func (g *Gallery) Identities() int {
	seen := make(map[string]struct{}, len(g.items))
	for _, item := range g.items {
		seen[item.StudentID] = struct{}{}
	}
	return len(seen)
}

// RosterEntry pairs a student with their stored reference embeddings. Faces
// may be empty; the builder then falls back to re-extracting from the photo.
type RosterEntry struct {
	Student entity.Student
	Faces   []entity.StudentFace
}

type PhotoFetcher interface {
	FetchFile(fileURL string) ([]byte, error)
}

type PhotoExtractor interface {
	Extract(image []byte) (entity.Embedding, int, error)
}

type Builder struct {
	log         *logrus.Logger
	photos      PhotoFetcher
	extractor   PhotoExtractor
	itemTimeout time.Duration
}

func NewBuilder(logger *logrus.Logger, photos PhotoFetcher, ext PhotoExtractor) *Builder {
	return &Builder{
		log:         logger,
		photos:      photos,
		extractor:   ext,
		itemTimeout: 10 * time.Second,
	}
}

// Build turns a course roster into a gallery snapshot. Students whose
// embeddings are stored are loaded directly; the rest get their photo fetched
// and re-extracted under a per-student timeout. A failed student is excluded
// with a reason and the build carries on.
func (b *Builder) Build(ctx context.Context, courseID string, roster []RosterEntry) (*Gallery, error) {
	g := &Gallery{
		courseID: courseID,
		builtAt:  time.Now(),
	}

	for _, entry := range roster {
		stored := 0
		for _, face := range entry.Faces {
			if !face.Embedding.Valid() {
				b.log.WithFields(log.Fields{
					"student_id": entry.Student.ID,
					"face_id":    face.ID,
					"dimensions": len(face.Embedding),
				}).Warn("Skipping stored reference with wrong dimension")
				continue
			}
			g.items = append(g.items, GalleryItem{
				StudentID: entry.Student.ID,
				Name:      entry.Student.Name,
				Embedding: face.Embedding.Clone(),
			})
			stored++
		}
		// A student whose stored references were all unusable still gets the
		// photo fallback; failing that they must show up as excluded.
		if stored > 0 {
			continue
		}

		embedding, err := b.extractFromPhoto(ctx, entry.Student)
		if err != nil {
			b.log.WithFields(log.Fields{
				"course_id":  courseID,
				"student_id": entry.Student.ID,
				"error":      err.Error(),
			}).Warn("Excluding student from gallery build")
			g.excluded = append(g.excluded, ExcludedStudent{
				StudentID: entry.Student.ID,
				Name:      entry.Student.Name,
				Reason:    err.Error(),
			})
			continue
		}

		g.items = append(g.items, GalleryItem{
			StudentID: entry.Student.ID,
			Name:      entry.Student.Name,
			Embedding: embedding,
		})
	}

	b.log.WithFields(log.Fields{
		"course_id":  courseID,
		"references": len(g.items),
		"excluded":   len(g.excluded),
	}).Info("Gallery build finished")

	return g, nil
}

func (b *Builder) extractFromPhoto(ctx context.Context, student entity.Student) (entity.Embedding, error) {
	if student.PhotoURL == "" {
		return nil, errors.New("no reference photo on file")
	}

	type result struct {
		embedding entity.Embedding
		err       error
	}

	ch := make(chan result, 1)

	go func() {
		data, err := b.photos.FetchFile(student.PhotoURL)
		if err != nil {
			ch <- result{err: fmt.Errorf("failed to fetch photo: %w", err)}
			return
		}

		embedding, faces, err := b.extractor.Extract(data)
		if err != nil {
			ch <- result{err: err}
			return
		}

		if faces > 1 {
			b.log.WithFields(log.Fields{
				"student_id": student.ID,
				"faces":      faces,
			}).Warn("Reference photo contains multiple faces, using the most prominent")
		}

		ch <- result{embedding: embedding}
	}()

	timer := time.NewTimer(b.itemTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, extractor.ErrNoFaceDetected) {
				return nil, errors.New("no face detected in reference photo")
			}
			return nil, res.err
		}
		return res.embedding, nil
	case <-timer.C:
		return nil, errors.New("embedding extraction timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
