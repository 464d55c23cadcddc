package logging

// FrameSampler suppresses repetitive encode-progress logs. FFmpeg reports a
// frame counter many times per second; logging every report drowns the rest
// of the output, so the sampler emits only when the counter crosses an
// interval boundary or reaches the known total.
type FrameSampler struct {
	interval  int64
	lastEmit  int64
	emittedAt bool
}

// NewFrameSampler constructs a sampler that emits every interval frames
// (default 50).
func NewFrameSampler(interval int64) *FrameSampler {
	if interval <= 0 {
		interval = 50
	}
	return &FrameSampler{interval: interval, lastEmit: -1}
}

// ShouldLog reports whether a progress event for the given frame should be
// logged. Total may be zero when unknown.
func (s *FrameSampler) ShouldLog(frame, total int64) bool {
	if s == nil {
		return true
	}
	if total > 0 && frame >= total && !s.emittedAt {
		s.emittedAt = true
		s.lastEmit = frame
		return true
	}
	if s.lastEmit < 0 || frame-s.lastEmit >= s.interval {
		s.lastEmit = frame
		return true
	}
	return false
}

// Reset clears sampler state when a new encode starts.
func (s *FrameSampler) Reset() {
	if s == nil {
		return
	}
	s.lastEmit = -1
	s.emittedAt = false
}
