package buffer

import "sync/atomic"

// Statistics counts window activity over the buffer's lifetime.
type Statistics struct {
	writes    atomic.Int64
	evictions atomic.Int64
	peak      atomic.Int64
}

func (s *Statistics) recordWrite(size int) {
	s.writes.Add(1)
	for {
		p := s.peak.Load()
		if int64(size) <= p || s.peak.CompareAndSwap(p, int64(size)) {
			return
		}
	}
}

func (s *Statistics) recordEviction() {
	s.evictions.Add(1)
}

// Summary is a point-in-time copy of the counters
type Summary struct {
	Writes    int64 `json:"writes"`
	Evictions int64 `json:"evictions"`
	Peak      int64 `json:"peak"`
}

// Summary returns the current counters
func (s *Statistics) Summary() Summary {
	return Summary{
		Writes:    s.writes.Load(),
		Evictions: s.evictions.Load(),
		Peak:      s.peak.Load(),
	}
}

// EvictionRate is the fraction of writes that pushed an older item out
func (s Summary) EvictionRate() float64 {
	if s.Writes == 0 {
		return 0
	}
	return float64(s.Evictions) / float64(s.Writes)
}
