package entity

// ExtractionResult is the raw response of the embedding AI service for one
// frame or photo. Faces are ordered by descending bounding-box area.
type ExtractionResult struct {
	Status string         `json:"status"`
	Faces  []DetectedFace `json:"faces"`
}

type DetectedFace struct {
	Embedding  Embedding `json:"embedding"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}
