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
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// Field is a gridded variable that is loaded lazily, one spatial chunk
// and one time slice at a time.
type Field struct {
	Name     string
	Variable string
	Grid     *Grid

	dims   []Dimension // in canonical order
	source FieldSource

	// slices holds the materialized blocks by time slice and chunk.
	slices map[int]map[int]*sparse.DenseArray
}

// Dims returns the dimensions of the field in (time, depth, lat, lon)
// order, omitting absent axes.
func (f *Field) Dims() []Dimension { return append([]Dimension(nil), f.dims...) }

// NChunks returns the number of chunks along each of the field's
// dimensions, in the order returned by Dims.
func (f *Field) NChunks() []int {
	o := make([]int, len(f.dims))
	for i, d := range f.dims {
		o[i] = f.Grid.Chunks(d.Axis).Len()
	}
	return o
}

// LoadChunk returns the load status of each spatial chunk of the
// field's grid.
func (f *Field) LoadChunk() []ChunkStatus { return f.Grid.LoadChunk.Status() }

// ChunkInfo returns the chunk layout summary of the field's grid.
func (f *Field) ChunkInfo() ChunkInfo { return f.Grid.ChunkInfo() }

// Resident returns the number of blocks currently held in memory.
func (f *Field) Resident() int {
	n := 0
	for _, s := range f.slices {
		n += len(s)
	}
	return n
}

// Sample returns the value of the field at time t and the given
// position. Space is sampled at the nearest cell and time is
// interpolated linearly between the bracketing slices, which must be in
// the grid's loaded time window.
func (f *Field) Sample(ctx context.Context, t, depth, lat, lon float64) (float64, error) {
	cell := make([]int, 0, 3)
	for _, a := range f.Grid.Axes() {
		var x float64
		switch a {
		case Depth:
			x = depth
		case Lat:
			x = lat
		case Lon:
			x = lon
		}
		cell = append(cell, nearest(f.Grid.Coords.Values(a), x))
	}
	chunk, err := f.Grid.ChunkIndex(cell)
	if err != nil {
		return math.NaN(), fmt.Errorf("drift: sampling field %s: %w", f.Name, err)
	}
	start, _, err := f.Grid.ChunkBox(chunk)
	if err != nil {
		return math.NaN(), fmt.Errorf("drift: sampling field %s: %w", f.Name, err)
	}
	local := make([]int, len(cell))
	for i := range cell {
		local[i] = cell[i] - start[i]
	}

	i0, i1, w, err := f.timeWeights(t)
	if err != nil {
		return math.NaN(), err
	}
	b0, err := f.block(ctx, i0, chunk)
	if err != nil {
		return math.NaN(), err
	}
	v := b0.Get(local...)
	if w == 0 {
		return v, nil
	}
	b1, err := f.block(ctx, i1, chunk)
	if err != nil {
		return math.NaN(), err
	}
	return (1-w)*v + w*b1.Get(local...), nil
}

// timeWeights returns the slices bracketing t and the weight of the
// second one.
func (f *Field) timeWeights(t float64) (int, int, float64, error) {
	times := f.Grid.Coords.Time
	n := len(times)
	if n <= 1 {
		return 0, 0, 0, nil
	}
	if t < times[0] || t > times[n-1] {
		if !f.Grid.Time.extrapolate {
			return 0, 0, 0, fmt.Errorf("%w: field %s: time %g is outside of [%g, %g]",
				ErrTimeOutOfRange, f.Name, t, times[0], times[n-1])
		}
		if t < times[0] {
			return 0, 0, 0, nil
		}
		return n - 1, n - 1, 0, nil
	}
	i := sort.SearchFloat64s(times, t) // first index with times[i] >= t
	if times[i] == t {
		return i, i, 0, nil
	}
	return i - 1, i, (t - times[i-1]) / (times[i] - times[i-1]), nil
}

// block returns the data of chunk at time slice ti, reading it from the
// source on first use. The chunk is marked as loaded in the grid only
// once its data has been read.
func (f *Field) block(ctx context.Context, ti, chunk int) (*sparse.DenseArray, error) {
	if w := f.Grid.Time.Window(); !w.Contains(ti) {
		return nil, fmt.Errorf("drift: field %s: time slice %d is not in the loaded window [%d, %d)",
			f.Name, ti, w.Lo, w.Hi)
	}
	if b, ok := f.slices[ti][chunk]; ok {
		return b, nil
	}
	b, err := f.materialize(ctx, ti, chunk)
	if err != nil {
		return nil, err
	}
	if _, err := f.Grid.LoadChunk.Touch(chunk); err != nil {
		return nil, fmt.Errorf("drift: field %s: %w", f.Name, err)
	}
	return b, nil
}

func (f *Field) materialize(ctx context.Context, ti, chunk int) (*sparse.DenseArray, error) {
	start, end, err := f.Grid.ChunkBox(chunk)
	if err != nil {
		return nil, fmt.Errorf("drift: field %s: %w", f.Name, err)
	}
	b, err := f.source.ReadBlock(ctx, f.Variable, ti, start, end)
	if err != nil {
		return nil, fmt.Errorf("drift: loading chunk %d of field %s at time slice %d: %v", chunk, f.Name, ti, err)
	}
	want := 1
	for i := range start {
		want *= end[i] - start[i]
	}
	if len(b.Elements) != want {
		return nil, fmt.Errorf("drift: loading chunk %d of field %s: source returned %d values; wanted %d",
			chunk, f.Name, len(b.Elements), want)
	}
	if f.slices[ti] == nil {
		f.slices[ti] = make(map[int]*sparse.DenseArray)
	}
	f.slices[ti][chunk] = b
	return b, nil
}

// shiftWindow drops the slices outside of w and loads every chunk that
// the grid has already touched for the slices that are new in w.
func (f *Field) shiftWindow(ctx context.Context, w TimeWindow) error {
	for ti := range f.slices {
		if !w.Contains(ti) {
			delete(f.slices, ti)
		}
	}
	loaded := f.Grid.LoadChunk.Loaded()
	for ti := w.Lo; ti < w.Hi; ti++ {
		for _, c := range loaded {
			if _, ok := f.slices[ti][c]; ok {
				continue
			}
			if _, err := f.materialize(ctx, ti, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// nearest returns the index of the value in vals (sorted in either
// direction) that is closest to x.
func nearest(vals []float64, x float64) int {
	n := len(vals)
	if n <= 1 {
		return 0
	}
	desc := vals[n-1] < vals[0]
	i := sort.Search(n, func(i int) bool {
		if desc {
			return vals[i] <= x
		}
		return vals[i] >= x
	})
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	if math.Abs(vals[i]-x) < math.Abs(x-vals[i-1]) {
		return i
	}
	return i - 1
}
