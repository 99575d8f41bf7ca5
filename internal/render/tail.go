package render

// stderrTailLimit bounds how much subprocess stderr is retained for error
// reporting and loudness parsing.
const stderrTailLimit = 4 * 1024

// tailWriter keeps only the most recent bytes written through it. ffmpeg can
// emit unbounded warning noise on long renders; the tail is what matters for
// diagnostics.
type tailWriter struct {
	limit int
	buf   []byte
}

func newTailWriter(limit int) *tailWriter {
	return &tailWriter{limit: limit}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n >= w.limit {
		w.buf = append(w.buf[:0], p[n-w.limit:]...)
		return n, nil
	}
	if overflow := len(w.buf) + n - w.limit; overflow > 0 {
		w.buf = append(w.buf[:0], w.buf[overflow:]...)
	}
	w.buf = append(w.buf, p...)
	return n, nil
}

func (w *tailWriter) String() string {
	return string(w.buf)
}
