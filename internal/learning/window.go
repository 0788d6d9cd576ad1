package learning

import "time"

// sample is one observed backend outcome.
type sample struct {
	confidence float64
	latency    time.Duration
	absErr     float64
	hasTruth   bool
}

// window is a bounded ring of recent samples for one backend.
type window struct {
	samples []sample
	next    int
}

func newWindow(size int) *window {
	return &window{samples: make([]sample, 0, size)}
}

func (w *window) push(s sample) {
	if len(w.samples) < cap(w.samples) {
		w.samples = append(w.samples, s)
		return
	}
	w.samples[w.next] = s
	w.next = (w.next + 1) % cap(w.samples)
}

func (w *window) count() int { return len(w.samples) }

func (w *window) meanConfidence() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range w.samples {
		sum += s.confidence
	}
	return sum / float64(len(w.samples))
}

func (w *window) meanLatency() time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range w.samples {
		sum += s.latency
	}
	return sum / time.Duration(len(w.samples))
}

// meanAbsError averages the absolute error over samples that carried
// ground truth. Returns 0 when none did.
func (w *window) meanAbsError() float64 {
	sum, n := 0.0, 0
	for _, s := range w.samples {
		if s.hasTruth {
			sum += s.absErr
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
