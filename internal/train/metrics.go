package train

// RunningMetrics accumulates per-batch loss and accuracy over an epoch.
// Averages are taken over batches, not samples.
type RunningMetrics struct {
	loss     float64
	accuracy float64
	batches  int
}

// Add records one batch.
func (m *RunningMetrics) Add(loss, accuracy float32) {
	m.loss += float64(loss)
	m.accuracy += float64(accuracy)
	m.batches++
}

// Reset clears all accumulated values.
func (m *RunningMetrics) Reset() {
	*m = RunningMetrics{}
}

// Batches returns the number of recorded batches.
func (m *RunningMetrics) Batches() int {
	return m.batches
}

// Loss returns the mean batch loss, or 0 before any batch.
func (m *RunningMetrics) Loss() float64 {
	if m.batches == 0 {
		return 0
	}
	return m.loss / float64(m.batches)
}

// Accuracy returns the mean batch accuracy, or 0 before any batch.
func (m *RunningMetrics) Accuracy() float64 {
	if m.batches == 0 {
		return 0
	}
	return m.accuracy / float64(m.batches)
}
