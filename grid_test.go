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
	"reflect"
	"testing"
)

func linspace(n int, start, step float64) []float64 {
	if n == 0 {
		return nil
	}
	o := make([]float64, n)
	for i := range o {
		o[i] = start + float64(i)*step
	}
	return o
}

// testCoords returns coordinates with nt time slices 10 s apart and
// unit spacing in space. Axes with zero length are left out.
func testCoords(nt, nd, ny, nx int) *Coords {
	return &Coords{
		Name:  "test",
		Time:  linspace(nt, 0, 10),
		Depth: linspace(nd, 0, 1),
		Lat:   linspace(ny, 0, 1),
		Lon:   linspace(nx, 0, 1),
	}
}

func TestGridSetDedup(t *testing.T) {
	gs := NewGridSet()
	c := testCoords(3, 75, 201, 151)
	l := map[Axis]int{Depth: 75, Lat: 16, Lon: 16}
	g1 := gs.GetOrCreate(c, l)
	g2 := gs.GetOrCreate(c, map[Axis]int{Depth: 75, Lat: 16, Lon: 16})
	if g1 != g2 {
		t.Error("equal layouts should share a grid")
	}
	if gs.Size() != 1 || g1.Refs() != 2 {
		t.Errorf("have %d grids and %d refs, want 1 and 2", gs.Size(), g1.Refs())
	}

	// A clamped length describes the same layout.
	g3 := gs.GetOrCreate(c, map[Axis]int{Depth: 0, Lat: 16, Lon: 16, Time: 1})
	if g3 != g1 {
		t.Error("a whole-axis request should match the equivalent explicit one")
	}

	g4 := gs.GetOrCreate(c, map[Axis]int{Depth: 75, Lat: 4, Lon: 16})
	if g4 == g1 || gs.Size() != 2 {
		t.Errorf("different layouts should not share a grid; have %d grids", gs.Size())
	}

	// The same shape on other coordinates is another grid.
	g5 := gs.GetOrCreate(testCoords(3, 75, 201, 151), l)
	if g5 == g1 || gs.Size() != 3 {
		t.Errorf("different coordinates should not share a grid; have %d grids", gs.Size())
	}

	gs.Release(g4)
	if gs.Size() != 2 {
		t.Errorf("released grid should be removed; have %d grids", gs.Size())
	}
	gs.Release(g1)
	if gs.Size() != 2 || g1.Refs() != 2 {
		t.Errorf("shared grid should stay; have %d grids and %d refs", gs.Size(), g1.Refs())
	}
	if have := gs.GetOrCreate(c, map[Axis]int{Depth: 75, Lat: 4, Lon: 16}); have == g4 {
		t.Error("a released grid should not be reused")
	}
}

func TestGridChunks(t *testing.T) {
	gs := NewGridSet()
	g := gs.GetOrCreate(testCoords(0, 75, 201, 151), map[Axis]int{Depth: 75, Lat: 16, Lon: 16})
	if have, want := g.LoadChunk.TotalCount(), 130; have != want {
		t.Errorf("load chunks: have %d, want %d", have, want)
	}
	if have, want := g.NChunks(), []int{1, 13, 10}; !reflect.DeepEqual(have, want) {
		t.Errorf("nchunks: have %v, want %v", have, want)
	}
	if have, want := g.Axes(), []Axis{Depth, Lat, Lon}; !reflect.DeepEqual(have, want) {
		t.Errorf("axes: have %v, want %v", have, want)
	}

	idx, err := g.ChunkIndex([]int{40, 200, 150})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 129 {
		t.Errorf("chunk index: have %d, want 129", idx)
	}
	start, end, err := g.ChunkBox(idx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 192, 144}; !reflect.DeepEqual(start, want) {
		t.Errorf("start: have %v, want %v", start, want)
	}
	if want := []int{75, 201, 151}; !reflect.DeepEqual(end, want) {
		t.Errorf("end: have %v, want %v", end, want)
	}
	start, end, err = g.ChunkBox(11)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(start, []int{0, 16, 16}) || !reflect.DeepEqual(end, []int{75, 32, 32}) {
		t.Errorf("chunk 11: have [%v, %v)", start, end)
	}

	for _, cell := range [][]int{{0, 201, 0}, {-1, 0, 0}, {0, 0}} {
		if _, err := g.ChunkIndex(cell); !errors.Is(err, ErrChunkIndex) {
			t.Errorf("cell %v: have %v, want a chunk index error", cell, err)
		}
	}
	if _, _, err := g.ChunkBox(130); !errors.Is(err, ErrChunkIndex) {
		t.Errorf("have %v, want a chunk index error", err)
	}
}

func TestGridChunkInfo(t *testing.T) {
	gs := NewGridSet()
	g := gs.GetOrCreate(testCoords(2, 0, 10, 7), map[Axis]int{Lat: 4, Lon: 3})
	ci := g.ChunkInfo()
	want := ChunkInfo{
		NDim:       2,
		NChunks:    []int{3, 3},
		BlockSizes: [][]int{{4, 4, 2}, {3, 3, 1}},
	}
	if !reflect.DeepEqual(ci, want) {
		t.Errorf("have %+v, want %+v", ci, want)
	}
	if have, want := ci.Flat(), []int{2, 3, 3, 4, 4, 2, 3, 3, 1}; !reflect.DeepEqual(have, want) {
		t.Errorf("flat: have %v, want %v", have, want)
	}
	if have := g.Chunks(Time).Len(); have != 2 {
		t.Errorf("time chunks: have %d, want 2", have)
	}
	if g.Chunks(Depth) != nil {
		t.Error("absent axis should have no chunks")
	}
}

func TestGridSetTimeRange(t *testing.T) {
	gs := NewGridSet()
	min, max := gs.TimeRange()
	if !math.IsNaN(min) || !math.IsNaN(max) {
		t.Errorf("empty set: have [%g, %g], want NaN", min, max)
	}
	gs.GetOrCreate(testCoords(0, 0, 2, 2), nil)
	a := testCoords(3, 0, 2, 2)
	b := testCoords(5, 0, 2, 2)
	b.Time = linspace(5, 10, 10) // 10 to 50
	gs.GetOrCreate(a, nil)
	gs.GetOrCreate(b, nil)
	min, max = gs.TimeRange()
	if min != 0 || max != 50 {
		t.Errorf("have [%g, %g], want [0, 50]", min, max)
	}
}
