/*
Copyright © 2019 the Drift authors.
This file is part of Drift.

Drift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Drift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Drift.  If not, see <http://www.gnu.org/licenses/>.
*/

package drift

import (
	"fmt"
	"math"
)

// timeMargin is the number of slices kept loaded on each side of the
// current time chunk.
const timeMargin = 1

// TimeWindow is the half-open range [Lo, Hi) of time slice indices
// that are currently loaded.
type TimeWindow struct {
	Lo, Hi int
}

// Contains reports whether slice i is in the window.
func (w TimeWindow) Contains(i int) bool { return i >= w.Lo && i < w.Hi }

// Len returns the number of slices in the window.
func (w TimeWindow) Len() int { return w.Hi - w.Lo }

// TimeChunkScheduler keeps track of which time slices of a grid are
// loaded as the simulation time moves forward or backward.
type TimeChunkScheduler struct {
	times       []float64
	chunks      Boundaries
	extrapolate bool

	chunk  int // current chunk; -1 before the first call to Advance
	window TimeWindow
}

// NewTimeChunkScheduler returns a scheduler for a time axis with the
// given slice times (which must increase) split into chunks. If
// extrapolate is true, times outside of the axis are clamped to it
// instead of causing an error.
func NewTimeChunkScheduler(times []float64, chunks Boundaries, extrapolate bool) *TimeChunkScheduler {
	if len(chunks) == 0 {
		chunks = Partition(len(times), 0)
	}
	return &TimeChunkScheduler{
		times:       times,
		chunks:      chunks,
		extrapolate: extrapolate,
		chunk:       -1,
	}
}

// Window returns the currently loaded window.
func (s *TimeChunkScheduler) Window() TimeWindow { return s.window }

// Initialized reports whether Advance has been called since the
// scheduler was created or reset.
func (s *TimeChunkScheduler) Initialized() bool { return s.chunk >= 0 }

// Chunks returns the time chunk boundaries.
func (s *TimeChunkScheduler) Chunks() Boundaries { return s.chunks }

// Reset forgets the loaded window.
func (s *TimeChunkScheduler) Reset() {
	s.chunk = -1
	s.window = TimeWindow{}
}

// Advance moves the loaded window so that it brackets time t for a run
// in the given direction (the sign of the time step; zero is treated as
// forward). It returns the new window and the time at which the next
// window change will be needed, which is +Inf (forward) or -Inf
// (backward) when no further change will happen.
func (s *TimeChunkScheduler) Advance(t, direction float64) (TimeWindow, float64, error) {
	backward := direction < 0
	never := math.Inf(1)
	if backward {
		never = math.Inf(-1)
	}
	n := len(s.times)
	if n <= 1 {
		// Fields that are constant in time.
		s.chunk = 0
		s.window = TimeWindow{Lo: 0, Hi: 1}
		return s.window, never, nil
	}
	if t < s.times[0] || t > s.times[n-1] {
		if !s.extrapolate {
			return s.window, never, fmt.Errorf("%w: time %g is outside of [%g, %g]",
				ErrTimeOutOfRange, t, s.times[0], s.times[n-1])
		}
		t = math.Max(s.times[0], math.Min(t, s.times[n-1]))
	}

	c := s.locate(t, backward)
	if c != s.chunk {
		s.chunk = c
		span := s.chunks[c]
		lo := span.Offset - timeMargin
		if lo < 0 {
			lo = 0
		}
		hi := span.Offset + span.Len + timeMargin
		if hi > n {
			hi = n
		}
		s.window = TimeWindow{Lo: lo, Hi: hi}
	}

	next := never
	if backward {
		if c > 0 {
			next = s.times[s.chunks[c].Offset]
		}
	} else if c+1 < len(s.chunks) {
		next = s.times[s.chunks[c+1].Offset]
	}
	return s.window, next, nil
}

// locate returns the chunk that time t belongs to. Going forward, a
// chunk owns the times from its first slice up to (not including) the
// first slice of the next chunk. Going backward, it owns the times after
// its first slice up to and including the first slice of the next chunk.
func (s *TimeChunkScheduler) locate(t float64, backward bool) int {
	c := 0
	for i := 1; i < len(s.chunks); i++ {
		start := s.times[s.chunks[i].Offset]
		if start < t || (!backward && start == t) {
			c = i
		} else {
			break
		}
	}
	return c
}
