package esn

// Sample is one (input, target) pair of a driving sequence.
type Sample struct {
	Input  []float64 `json:"input"`
	Target []float64 `json:"target"`
}

// Sequence is an ordered run of samples. Reservoirs only read it.
type Sequence []Sample

// Targets returns the target rows of s starting at index from.
func (s Sequence) Targets(from int) [][]float64 {
	if from < 0 {
		from = 0
	}
	if from >= len(s) {
		return [][]float64{}
	}
	out := make([][]float64, 0, len(s)-from)
	for _, sample := range s[from:] {
		out = append(out, append([]float64(nil), sample.Target...))
	}
	return out
}

// Inputs returns every input row of s.
func (s Sequence) Inputs() [][]float64 {
	out := make([][]float64, 0, len(s))
	for _, sample := range s {
		out = append(out, append([]float64(nil), sample.Input...))
	}
	return out
}
