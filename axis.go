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

// Package drift advects particles through gridded, time-varying vector
// fields that are loaded lazily in chunks.
package drift

import (
	"fmt"
	"strings"
)

// Version gives the version number.
const Version = "0.3.0"

// Axis is the role that a dimension plays in a field.
type Axis int

// The axes a field may be defined on.
const (
	Time Axis = iota
	Depth
	Lat
	Lon
)

// Axes lists every axis in canonical (time, depth, lat, lon) order.
var Axes = []Axis{Time, Depth, Lat, Lon}

func (a Axis) String() string {
	switch a {
	case Time:
		return "time"
	case Depth:
		return "depth"
	case Lat:
		return "lat"
	case Lon:
		return "lon"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis returns the axis with the given name.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time", "t":
		return Time, nil
	case "depth", "z":
		return Depth, nil
	case "lat", "latitude", "y":
		return Lat, nil
	case "lon", "longitude", "x":
		return Lon, nil
	}
	return 0, configErrorf("unknown axis %q", s)
}

// Coords holds the rectilinear coordinate arrays that one or more fields
// are sampled on. Any axis may be left empty if the fields do not vary
// along it. Fields constructed with the same *Coords are coupled: the
// pointer is the identity of the coordinate source.
type Coords struct {
	Name  string
	Time  []float64 // seconds
	Depth []float64
	Lat   []float64
	Lon   []float64
}

// Values returns the coordinate array for axis a.
func (c *Coords) Values(a Axis) []float64 {
	switch a {
	case Time:
		return c.Time
	case Depth:
		return c.Depth
	case Lat:
		return c.Lat
	case Lon:
		return c.Lon
	}
	return nil
}

// Size returns the number of cells along axis a.
func (c *Coords) Size(a Axis) int { return len(c.Values(a)) }

// spatialAxes returns the non-time axes present in c, in canonical order.
func (c *Coords) spatialAxes() []Axis {
	var o []Axis
	for _, a := range Axes[1:] {
		if c.Size(a) > 0 {
			o = append(o, a)
		}
	}
	return o
}

// Dimension describes one axis of a field as it is known in the
// field's source data.
type Dimension struct {
	Name string // name of the dimension in the source, e.g. "depthu"
	Axis Axis
	Size int
}

// NameMap lists, for each axis, the dimension names that are accepted
// as referring to it. It allows coupled fields that store the same axis
// under different names (depthu, depthv, depthw) to be chunked
// with one request.
type NameMap map[Axis][]string

// accepts reports whether name is a known alias of axis a.
func (m NameMap) accepts(a Axis, name string) bool {
	for _, n := range m[a] {
		if n == name {
			return true
		}
	}
	return false
}
