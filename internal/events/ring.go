package events

// ring is a fixed-capacity presence history; the oldest value is evicted
// first.
type ring struct {
	buf   []bool
	start int
	n     int
}

func newRing(capacity int) ring {
	return ring{buf: make([]bool, capacity)}
}

func (r *ring) push(v bool) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) len() int { return r.n }

func (r *ring) count() int {
	c := 0
	for i := 0; i < r.n; i++ {
		if r.buf[(r.start+i)%len(r.buf)] {
			c++
		}
	}
	return c
}

// values returns the history oldest first.
func (r *ring) values() []bool {
	out := make([]bool, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring) clear() {
	r.start = 0
	r.n = 0
}
