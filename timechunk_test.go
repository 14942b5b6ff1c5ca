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
	"errors"
	"math"
	"testing"
)

func TestTimeChunkSchedulerForward(t *testing.T) {
	times := []float64{0, 10, 20, 30, 40}
	s := NewTimeChunkScheduler(times, Partition(5, 1), false)
	if s.Initialized() {
		t.Fatal("new scheduler should not be initialized")
	}
	tests := []struct {
		t    float64
		want TimeWindow
		next float64
	}{
		{t: 0, want: TimeWindow{0, 2}, next: 10},
		{t: 5, want: TimeWindow{0, 2}, next: 10},
		{t: 10, want: TimeWindow{0, 3}, next: 20},
		{t: 25, want: TimeWindow{1, 4}, next: 30},
		{t: 40, want: TimeWindow{3, 5}, next: math.Inf(1)},
	}
	for _, test := range tests {
		w, next, err := s.Advance(test.t, 1)
		if err != nil {
			t.Fatal(err)
		}
		if w != test.want || next != test.next {
			t.Errorf("t=%g: have %v next %g, want %v next %g", test.t, w, next, test.want, test.next)
		}
	}
}

func TestTimeChunkSchedulerBackward(t *testing.T) {
	times := []float64{0, 10, 20, 30, 40}
	s := NewTimeChunkScheduler(times, Partition(5, 1), false)
	tests := []struct {
		t    float64
		want TimeWindow
		next float64
	}{
		{t: 40, want: TimeWindow{2, 5}, next: 30},
		{t: 35, want: TimeWindow{2, 5}, next: 30},
		{t: 30, want: TimeWindow{1, 4}, next: 20},
		{t: 1, want: TimeWindow{0, 2}, next: math.Inf(-1)},
		{t: 0, want: TimeWindow{0, 2}, next: math.Inf(-1)},
	}
	for _, test := range tests {
		w, next, err := s.Advance(test.t, -1)
		if err != nil {
			t.Fatal(err)
		}
		if w != test.want || next != test.next {
			t.Errorf("t=%g: have %v next %g, want %v next %g", test.t, w, next, test.want, test.next)
		}
	}
}

func TestTimeChunkSchedulerMultiSliceChunks(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5, 6}
	s := NewTimeChunkScheduler(times, Partition(7, 3), false)
	w, next, err := s.Advance(3.5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if want := (TimeWindow{2, 7}); w != want || next != 6 {
		t.Errorf("have %v next %g, want %v next 6", w, next, want)
	}
	if w.Len() != 5 || !w.Contains(2) || w.Contains(7) {
		t.Error("window methods are wrong")
	}
}

func TestTimeChunkSchedulerOutOfRange(t *testing.T) {
	times := []float64{0, 10, 20}
	s := NewTimeChunkScheduler(times, Partition(3, 1), false)
	for _, tt := range []float64{-1, 21} {
		if _, _, err := s.Advance(tt, 1); !errors.Is(err, ErrTimeOutOfRange) {
			t.Errorf("t=%g: have %v, want an out of range error", tt, err)
		}
	}

	s = NewTimeChunkScheduler(times, Partition(3, 1), true)
	w, next, err := s.Advance(100, 1)
	if err != nil {
		t.Fatal(err)
	}
	if want := (TimeWindow{1, 3}); w != want || !math.IsInf(next, 1) {
		t.Errorf("have %v next %g, want %v next +Inf", w, next, want)
	}
	w, _, err = s.Advance(-100, -1)
	if err != nil {
		t.Fatal(err)
	}
	if want := (TimeWindow{0, 2}); w != want {
		t.Errorf("have %v, want %v", w, want)
	}
}

func TestTimeChunkSchedulerStatic(t *testing.T) {
	for _, times := range [][]float64{nil, {5}} {
		s := NewTimeChunkScheduler(times, nil, false)
		w, next, err := s.Advance(1e9, 1)
		if err != nil {
			t.Fatal(err)
		}
		if want := (TimeWindow{0, 1}); w != want || !math.IsInf(next, 1) {
			t.Errorf("have %v next %g, want %v next +Inf", w, next, want)
		}
	}
}

func TestTimeChunkSchedulerReset(t *testing.T) {
	s := NewTimeChunkScheduler([]float64{0, 1}, nil, false)
	if _, _, err := s.Advance(0, 1); err != nil {
		t.Fatal(err)
	}
	if !s.Initialized() {
		t.Error("scheduler should be initialized")
	}
	s.Reset()
	if s.Initialized() || s.Window() != (TimeWindow{}) {
		t.Error("reset scheduler should be empty")
	}
	if s.Chunks().Len() != 1 {
		t.Errorf("have %d chunks, want 1", s.Chunks().Len())
	}
}
