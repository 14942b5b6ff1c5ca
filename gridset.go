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

	"github.com/spatialmodel/drift/internal/hash"
)

// gridLayout is the part of a grid that takes part in its identity
// besides the coordinate source.
type gridLayout struct {
	Axes   []Axis
	Chunks []Boundaries
	Time   Boundaries
}

// GridSet holds the distinct grids used by a FieldSet. Fields whose
// coordinate source and chunk layout are both identical share a Grid.
type GridSet struct {
	// AllowTimeExtrapolation is passed on to the time schedulers of
	// grids created after it is set.
	AllowTimeExtrapolation bool

	grids    []*Grid
	byKey    map[string]*Grid
	coordIDs map[*Coords]int
	nextID   int
}

// NewGridSet returns an empty GridSet.
func NewGridSet() *GridSet {
	return &GridSet{
		byKey:    make(map[string]*Grid),
		coordIDs: make(map[*Coords]int),
	}
}

// GetOrCreate returns the grid for coords chunked with the given length
// along each axis, creating it if no equal grid exists yet. A length
// that is missing, <= 0 or larger than the axis makes the axis a single
// chunk. Time is chunked one slice at a time unless a length is given.
// The returned grid's reference count is incremented.
func (gs *GridSet) GetOrCreate(coords *Coords, lengths map[Axis]int) *Grid {
	layout := gridLayout{Axes: coords.spatialAxes()}
	for _, a := range layout.Axes {
		layout.Chunks = append(layout.Chunks, Partition(coords.Size(a), lengths[a]))
	}
	tl, ok := lengths[Time]
	if !ok {
		tl = 1
	}
	layout.Time = Partition(coords.Size(Time), tl)

	cid, ok := gs.coordIDs[coords]
	if !ok {
		cid = len(gs.coordIDs)
		gs.coordIDs[coords] = cid
	}
	key := fmt.Sprintf("%d/%s", cid, hash.Key(layout))
	g, ok := gs.byKey[key]
	if !ok {
		g = newGrid(gs.nextID, key, coords, layout, gs.AllowTimeExtrapolation)
		gs.nextID++
		gs.byKey[key] = g
		gs.grids = append(gs.grids, g)
	}
	g.refs++
	return g
}

// Release decrements the reference count of g and removes it from the
// set when no field uses it any more.
func (gs *GridSet) Release(g *Grid) {
	if g.refs > 0 {
		g.refs--
	}
	if g.refs > 0 {
		return
	}
	delete(gs.byKey, g.key)
	for i, gg := range gs.grids {
		if gg == g {
			gs.grids = append(gs.grids[:i], gs.grids[i+1:]...)
			break
		}
	}
}

// Size returns the number of distinct grids.
func (gs *GridSet) Size() int { return len(gs.grids) }

// Grids returns the grids in creation order.
func (gs *GridSet) Grids() []*Grid { return append([]*Grid(nil), gs.grids...) }

// TimeRange returns the earliest and latest time covered by any grid.
// Both are NaN if no grid has a time axis.
func (gs *GridSet) TimeRange() (min, max float64) {
	min, max = math.NaN(), math.NaN()
	for _, g := range gs.grids {
		lo, hi := g.timeRange()
		if math.IsNaN(lo) {
			continue
		}
		if math.IsNaN(min) || lo < min {
			min = lo
		}
		if math.IsNaN(max) || hi > max {
			max = hi
		}
	}
	return min, max
}
