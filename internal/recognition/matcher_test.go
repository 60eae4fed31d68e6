package recognition

import (
	"math"
	"testing"
	"time"

	"github.com/tararauzumaki/autoattend/internal/entity"
)

func embeddingAt(x float64) entity.Embedding {
	e := make(entity.Embedding, entity.EmbeddingDim)
	e[0] = x
	return e
}

func galleryOf(items ...GalleryItem) *Gallery {
	return &Gallery{
		courseID: "course-1",
		items:    items,
		builtAt:  time.Now(),
	}
}

func TestMatcherMatch(t *testing.T) {
	gallery := galleryOf(
		GalleryItem{StudentID: "s1", Name: "Alya", Embedding: embeddingAt(0)},
		GalleryItem{StudentID: "s2", Name: "Bagas", Embedding: embeddingAt(1)},
		GalleryItem{StudentID: "s3", Name: "Citra", Embedding: embeddingAt(2)},
	)

	tests := []struct {
		name          string
		probe         entity.Embedding
		wantMatched   bool
		wantStudentID string
		wantDistance  float64
	}{
		{
			name:          "nearest identity wins",
			probe:         embeddingAt(0.9),
			wantMatched:   true,
			wantStudentID: "s2",
			wantDistance:  0.1,
		},
		{
			name:          "distance exactly at threshold matches",
			probe:         embeddingAt(0.6),
			wantMatched:   true,
			wantStudentID: "s1",
			wantDistance:  0.6,
		},
		{
			name:         "beyond threshold is unknown",
			probe:        embeddingAt(2.7),
			wantMatched:  false,
			wantDistance: 0.7,
		},
		{
			name:        "invalid probe never matches",
			probe:       entity.Embedding{1, 2, 3},
			wantMatched: false,
		},
	}

	m := NewMatcher(0.6)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(gallery, tt.probe)

			if got.Matched != tt.wantMatched {
				t.Fatalf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if got.StudentID != tt.wantStudentID {
				t.Errorf("StudentID = %q, want %q", got.StudentID, tt.wantStudentID)
			}
			if tt.wantDistance > 0 && math.Abs(got.Distance-tt.wantDistance) > 1e-9 {
				t.Errorf("Distance = %f, want %f", got.Distance, tt.wantDistance)
			}
		})
	}
}

func TestMatcherTieKeepsEarlierReference(t *testing.T) {
	gallery := galleryOf(
		GalleryItem{StudentID: "s1", Name: "Alya", Embedding: embeddingAt(1)},
		GalleryItem{StudentID: "s2", Name: "Bagas", Embedding: embeddingAt(1)},
	)

	got := NewMatcher(0.6).Match(gallery, embeddingAt(1))

	if !got.Matched {
		t.Fatal("expected a match")
	}
	if got.StudentID != "s1" {
		t.Errorf("StudentID = %q, want s1", got.StudentID)
	}
}

func TestMatcherEmptyGallery(t *testing.T) {
	got := NewMatcher(0.6).Match(galleryOf(), embeddingAt(0))

	if got.Matched {
		t.Fatal("empty gallery must never match")
	}
}

func TestMatcherMultipleReferencesSameStudent(t *testing.T) {
	gallery := galleryOf(
		GalleryItem{StudentID: "s1", Name: "Alya", Embedding: embeddingAt(0)},
		GalleryItem{StudentID: "s1", Name: "Alya", Embedding: embeddingAt(3)},
	)

	got := NewMatcher(0.6).Match(gallery, embeddingAt(3.1))

	if !got.Matched {
		t.Fatal("expected the second reference to match")
	}
	if got.StudentID != "s1" {
		t.Errorf("StudentID = %q, want s1", got.StudentID)
	}
}

func TestNewMatcherDefaultsThreshold(t *testing.T) {
	if got := NewMatcher(0).Threshold(); got != DefaultThreshold {
		t.Errorf("Threshold() = %f, want %f", got, DefaultThreshold)
	}
	if got := NewMatcher(0.45).Threshold(); got != 0.45 {
		t.Errorf("Threshold() = %f, want 0.45", got)
	}
}
