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

// Grid is a coordinate source together with a fixed chunk layout. A Grid
// may be shared by several fields, in which case they also share its
// chunk load state and its time window.
type Grid struct {
	ID     int
	Coords *Coords

	axes       []Axis       // spatial axes in canonical order
	chunks     []Boundaries // one per spatial axis
	timeChunks Boundaries

	// LoadChunk records which spatial chunks have been touched.
	LoadChunk *ChunkLoadState

	// Time tracks the loaded time window.
	Time *TimeChunkScheduler

	key  string
	refs int
}

func newGrid(id int, key string, coords *Coords, layout gridLayout, extrapolate bool) *Grid {
	g := &Grid{
		ID:         id,
		Coords:     coords,
		axes:       layout.Axes,
		chunks:     layout.Chunks,
		timeChunks: layout.Time,
		key:        key,
	}
	n := 1
	for _, b := range g.chunks {
		n *= b.Len()
	}
	g.LoadChunk = NewChunkLoadState(n)
	g.Time = NewTimeChunkScheduler(coords.Time, g.timeChunks, extrapolate)
	return g
}

// Axes returns the spatial axes of the grid in canonical order.
func (g *Grid) Axes() []Axis { return g.axes }

// Chunks returns the chunk boundaries along axis a.
func (g *Grid) Chunks(a Axis) Boundaries {
	if a == Time {
		return g.timeChunks
	}
	for i, ga := range g.axes {
		if ga == a {
			return g.chunks[i]
		}
	}
	return nil
}

// NChunks returns the number of chunks along each spatial axis.
func (g *Grid) NChunks() []int {
	o := make([]int, len(g.chunks))
	for i, b := range g.chunks {
		o[i] = b.Len()
	}
	return o
}

// Refs returns the number of fields using the grid.
func (g *Grid) Refs() int { return g.refs }

// ChunkIndex returns the flat, row-major index of the chunk that holds
// the cell with the given per-axis indices.
func (g *Grid) ChunkIndex(cell []int) (int, error) {
	if len(cell) != len(g.chunks) {
		return -1, fmt.Errorf("%w: grid %d has %d spatial axes but %d indices were given",
			ErrChunkIndex, g.ID, len(g.chunks), len(cell))
	}
	idx := 0
	for i, b := range g.chunks {
		c := b.Locate(cell[i])
		if c < 0 {
			return -1, fmt.Errorf("%w: cell %d is outside of %s axis of grid %d (size %d)",
				ErrChunkIndex, cell[i], g.axes[i], g.ID, b.Size())
		}
		idx = idx*b.Len() + c
	}
	return idx, nil
}

// ChunkBox returns the half-open box of cells [start, end) that chunk
// covers.
func (g *Grid) ChunkBox(chunk int) (start, end []int, err error) {
	if chunk < 0 || chunk >= g.LoadChunk.TotalCount() {
		return nil, nil, fmt.Errorf("%w: chunk %d of %d in grid %d",
			ErrChunkIndex, chunk, g.LoadChunk.TotalCount(), g.ID)
	}
	start = make([]int, len(g.chunks))
	end = make([]int, len(g.chunks))
	for i := len(g.chunks) - 1; i >= 0; i-- {
		b := g.chunks[i]
		s := b[chunk%b.Len()]
		chunk /= b.Len()
		start[i] = s.Offset
		end[i] = s.Offset + s.Len
	}
	return start, end, nil
}

// ChunkInfo summarizes the chunk layout of a grid.
type ChunkInfo struct {
	NDim       int     // number of spatial axes
	NChunks    []int   // chunks per spatial axis
	BlockSizes [][]int // chunk lengths per spatial axis
}

// ChunkInfo returns the chunk layout summary of the grid.
func (g *Grid) ChunkInfo() ChunkInfo {
	ci := ChunkInfo{
		NDim:       len(g.chunks),
		NChunks:    g.NChunks(),
		BlockSizes: make([][]int, len(g.chunks)),
	}
	for i, b := range g.chunks {
		ci.BlockSizes[i] = b.Sizes()
	}
	return ci
}

// Flat returns the summary as [ndim, nchunks..., block sizes...].
func (ci ChunkInfo) Flat() []int {
	o := append([]int{ci.NDim}, ci.NChunks...)
	for _, s := range ci.BlockSizes {
		o = append(o, s...)
	}
	return o
}

// timeRange returns the first and last time of the grid, or NaN if the
// grid has no time axis.
func (g *Grid) timeRange() (float64, float64) {
	t := g.Coords.Time
	if len(t) == 0 {
		return math.NaN(), math.NaN()
	}
	return t[0], t[len(t)-1]
}
