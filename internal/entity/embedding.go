package entity

// EmbeddingDim is fixed by the pre-trained face model. Every ingestion path
// must reject vectors of any other length.
const EmbeddingDim = 128

type Embedding []float64

func (e Embedding) Valid() bool {
	return len(e) == EmbeddingDim
}

func (e Embedding) Clone() Embedding {
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}
