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
	"reflect"
	"testing"
)

func TestChunkLoadState(t *testing.T) {
	s := NewChunkLoadState(5)
	if s.TotalCount() != 5 || s.LoadedCount() != 0 {
		t.Fatalf("have %d of %d loaded", s.LoadedCount(), s.TotalCount())
	}
	first, err := s.Touch(3)
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Error("first touch should report true")
	}
	first, err = s.Touch(3)
	if err != nil {
		t.Fatal(err)
	}
	if first {
		t.Error("second touch should report false")
	}
	if _, err := s.Touch(0); err != nil {
		t.Fatal(err)
	}
	if have, want := s.LoadedCount(), 2; have != want {
		t.Errorf("loaded: have %d, want %d", have, want)
	}
	if !s.IsLoaded(3) || s.IsLoaded(1) || s.IsLoaded(7) {
		t.Error("IsLoaded is wrong")
	}
	if have, want := s.Loaded(), []int{0, 3}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	want := []ChunkStatus{ChunkLoaded, ChunkUnloaded, ChunkUnloaded, ChunkLoaded, ChunkUnloaded}
	st := s.Status()
	if !reflect.DeepEqual(st, want) {
		t.Errorf("have %v, want %v", st, want)
	}
	st[1] = ChunkLoaded
	if s.IsLoaded(1) {
		t.Error("Status should return a copy")
	}
}

func TestChunkLoadStateOutOfRange(t *testing.T) {
	s := NewChunkLoadState(2)
	for _, i := range []int{-1, 2} {
		if _, err := s.Touch(i); !errors.Is(err, ErrChunkIndex) {
			t.Errorf("chunk %d: have %v, want a chunk index error", i, err)
		}
	}
	if s.LoadedCount() != 0 {
		t.Error("failed touches should not load chunks")
	}
}

func TestChunkLoadStateMinimum(t *testing.T) {
	if have := NewChunkLoadState(0).TotalCount(); have != 1 {
		t.Errorf("have %d, want 1", have)
	}
}
