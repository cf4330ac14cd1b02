package md

// RingBuffer keeps the most recent bars of the live history. Capacity should
// be at least the lookback of the active strategy.
type RingBuffer struct {
	values []Bar
	size   int
	index  int
	filled bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{
		values: make([]Bar, size),
		size:   size,
	}
}

// Add stores bar and reports whether it was kept. A bar stamped at the same
// time as the newest bar replaces it; an older bar is dropped.
func (r *RingBuffer) Add(bar Bar) bool {
	if last, ok := r.Last(); ok {
		if bar.Timestamp.Equal(last.Timestamp) {
			r.values[r.lastIndex()] = bar
			return true
		}
		if bar.Timestamp.Before(last.Timestamp) {
			return false
		}
	}
	r.values[r.index] = bar
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
	return true
}

func (r *RingBuffer) AddAll(series Series) {
	for _, bar := range series {
		r.Add(bar)
	}
}

func (r *RingBuffer) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

func (r *RingBuffer) Cap() int {
	return r.size
}

func (r *RingBuffer) Last() (Bar, bool) {
	if r.Len() == 0 {
		return Bar{}, false
	}
	return r.values[r.lastIndex()], true
}

// Values returns the retained bars oldest first.
func (r *RingBuffer) Values() Series {
	length := r.Len()
	result := make(Series, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}

// With returns the retained bars with bar merged in, without storing it.
func (r *RingBuffer) With(bar Bar) Series {
	return r.Values().Merge(bar)
}

func (r *RingBuffer) lastIndex() int {
	return (r.index - 1 + r.size) % r.size
}
