package tracking

import "sort"

// SignalFilter is a trimmed moving average over the last N samples.
// With more than four samples the single smallest and largest are dropped
// before averaging, which rejects one-frame outliers.
type SignalFilter struct {
	size    int
	samples []float64
	scratch []float64
}

// NewSignalFilter creates a filter remembering the last size samples
func NewSignalFilter(size int) *SignalFilter {
	if size < 1 {
		size = 1
	}
	return &SignalFilter{
		size:    size,
		samples: make([]float64, 0, size),
		scratch: make([]float64, 0, size),
	}
}

// Add appends a sample, evicting the oldest when full
func (f *SignalFilter) Add(v float64) {
	if len(f.samples) == f.size {
		copy(f.samples, f.samples[1:])
		f.samples = f.samples[:f.size-1]
	}
	f.samples = append(f.samples, v)
}

// Filtered returns the trimmed mean. The second result is false while the
// filter is empty.
func (f *SignalFilter) Filtered() (float64, bool) {
	if len(f.samples) == 0 {
		return 0, false
	}

	vals := append(f.scratch[:0], f.samples...)
	sort.Float64s(vals)
	if len(vals) > 4 {
		vals = vals[1 : len(vals)-1]
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

// Len returns the number of samples held
func (f *SignalFilter) Len() int {
	return len(f.samples)
}

// Reset discards all samples
func (f *SignalFilter) Reset() {
	f.samples = f.samples[:0]
}
