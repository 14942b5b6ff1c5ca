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

package driftutil

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/drift"
)

// Layout describes how the fields of a FieldSet are assigned to grids.
type Layout struct {
	Grids  []GridLayout  `toml:"grid"`
	Fields []FieldLayout `toml:"field"`
}

// GridLayout describes the chunks of one grid.
type GridLayout struct {
	ID     int    `toml:"id"`
	Coords string `toml:"coords"`
	Refs   int    `toml:"refs"`

	// Axes maps axis names to chunk lengths.
	Axes map[string][]int `toml:"axes"`

	// ChunkInfo is the flattened chunk description:
	// [ndim, nchunks per dim..., block sizes...].
	ChunkInfo []int `toml:"chunk_info"`
}

// FieldLayout gives the grid a field is defined on.
type FieldLayout struct {
	Name     string            `toml:"name"`
	Variable string            `toml:"variable"`
	Grid     int               `toml:"grid"`
	Dims     map[string]string `toml:"dims"`
	NChunks  []int             `toml:"nchunks"`
}

// NewLayout returns the layout of fs.
func NewLayout(fs *drift.FieldSet) *Layout {
	l := new(Layout)
	for _, g := range fs.GridSet.Grids() {
		gl := GridLayout{
			ID:        g.ID,
			Coords:    g.Coords.Name,
			Refs:      g.Refs(),
			Axes:      make(map[string][]int),
			ChunkInfo: g.ChunkInfo().Flat(),
		}
		for _, a := range drift.Axes {
			if b := g.Chunks(a); b != nil {
				gl.Axes[a.String()] = b.Sizes()
			}
		}
		l.Grids = append(l.Grids, gl)
	}
	for _, f := range fs.Fields {
		fl := FieldLayout{
			Name:     f.Name,
			Variable: f.Variable,
			Grid:     f.Grid.ID,
			Dims:     make(map[string]string),
			NChunks:  f.NChunks(),
		}
		for _, d := range f.Dims() {
			fl.Dims[d.Axis.String()] = d.Name
		}
		l.Fields = append(l.Fields, fl)
	}
	return l
}

// WriteLayout writes the layout of fs to w in TOML format.
func WriteLayout(w io.Writer, fs *drift.FieldSet) error {
	if err := toml.NewEncoder(w).Encode(NewLayout(fs)); err != nil {
		return fmt.Errorf("drift: writing layout: %v", err)
	}
	return nil
}
