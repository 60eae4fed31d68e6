package recognition

import (
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/tararauzumaki/autoattend/internal/entity"
)

// DefaultThreshold is the Euclidean distance below which two embeddings are
// considered the same person. 0.6 is the conventional operating point for
// 128-dimensional dlib-style embeddings.
const DefaultThreshold = 0.6

type Match struct {
	Matched   bool
	StudentID string
	Name      string
	Distance  float64
}

type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

func NewMatcherFromEnv() *Matcher {
	threshold, err := strconv.ParseFloat(os.Getenv("FACE_MATCH_THRESHOLD"), 64)
	if err != nil {
		threshold = DefaultThreshold
	}
	return NewMatcher(threshold)
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match scans the whole gallery and returns the nearest identity. A probe
// matches when its best distance is at or below the threshold; a distance
// exactly at the threshold still counts. When two references are equally
// near, the one earlier in the gallery wins.
func (m *Matcher) Match(g *Gallery, probe entity.Embedding) Match {
	if g == nil || len(g.items) == 0 || !probe.Valid() {
		return Match{}
	}

	best := Match{Distance: -1}

	for _, item := range g.items {
		d := floats.Distance(probe, item.Embedding, 2)
		if best.Distance < 0 || d < best.Distance {
			best = Match{
				StudentID: item.StudentID,
				Name:      item.Name,
				Distance:  d,
			}
		}
	}

	best.Matched = best.Distance <= m.threshold
	if !best.Matched {
		return Match{Distance: best.Distance}
	}

	return best
}
