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

	"github.com/ctessum/sparse"
)

// FieldSource provides the raw data behind fields.
type FieldSource interface {
	// ReadBlock returns the values of variable at time slice t within
	// the half-open box of cells [start, end), ordered like the
	// field's spatial axes. The result has shape end-start. Sources
	// for variables without a time dimension ignore t.
	ReadBlock(ctx context.Context, variable string, t int, start, end []int) (*sparse.DenseArray, error)
}

// ArraySource is a FieldSource that serves in-memory arrays, keyed by
// variable name. Each array is shaped (time, spatial axes...) or, for
// variables that are constant in time, (spatial axes...).
type ArraySource map[string]*sparse.DenseArray

// ReadBlock implements FieldSource.
func (s ArraySource) ReadBlock(ctx context.Context, variable string, t int, start, end []int) (*sparse.DenseArray, error) {
	a, ok := s[variable]
	if !ok {
		return nil, fmt.Errorf("drift: array source has no variable %s", variable)
	}
	prefix, err := timePrefix(variable, len(a.Shape), len(start), t)
	if err != nil {
		return nil, err
	}
	if len(prefix) == 1 && (t < 0 || t >= a.Shape[0]) {
		return nil, fmt.Errorf("drift: variable %s has %d time slices; slice %d requested", variable, a.Shape[0], t)
	}
	for i := range start {
		if start[i] < 0 || end[i] > a.Shape[len(prefix)+i] || start[i] >= end[i] {
			return nil, fmt.Errorf("drift: invalid block [%v, %v) for variable %s with shape %v", start, end, variable, a.Shape)
		}
	}
	out := sparse.ZerosDense(boxShape(start, end)...)
	forEachRow(start, end, func(row []int, pos int) {
		idx := append(append([]int(nil), prefix...), row...)
		base := a.Index1d(idx...)
		copy(out.Elements[pos:pos+end[len(end)-1]-start[len(start)-1]], a.Elements[base:])
	})
	return out, nil
}

// timePrefix returns the leading index to use for a variable of the
// given rank when reading a block with nSpatial axes.
func timePrefix(variable string, rank, nSpatial, t int) ([]int, error) {
	switch rank {
	case nSpatial + 1:
		return []int{t}, nil
	case nSpatial:
		return nil, nil
	}
	return nil, fmt.Errorf("drift: variable %s has %d dimensions but a block with %d spatial dimensions was requested",
		variable, rank, nSpatial)
}

func boxShape(start, end []int) []int {
	o := make([]int, len(start))
	for i := range start {
		o[i] = end[i] - start[i]
	}
	return o
}

// forEachRow calls f for each contiguous row of the box [start, end),
// where a row runs along the last axis. f receives the index of the
// first cell of the row and the row's offset in a row-major array
// shaped like the box.
func forEachRow(start, end []int, f func(row []int, pos int)) {
	n := len(start)
	if n == 0 {
		return
	}
	rowLen := end[n-1] - start[n-1]
	row := append([]int(nil), start...)
	pos := 0
	for {
		f(row, pos)
		pos += rowLen
		i := n - 2
		for ; i >= 0; i-- {
			row[i]++
			if row[i] < end[i] {
				break
			}
			row[i] = start[i]
		}
		if i < 0 {
			return
		}
	}
}
