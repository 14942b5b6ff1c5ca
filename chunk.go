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
	"sort"
	"strings"
)

// DefaultAutoChunkBytes is the default target size of one spatial chunk
// when chunks are sized automatically.
const DefaultAutoChunkBytes = 256 << 10

// Span is one chunk along an axis, covering cells [Offset, Offset+Len).
type Span struct {
	Offset, Len int
}

// Boundaries is an ordered sequence of chunks that covers an axis
// without gaps or overlaps.
type Boundaries []Span

// Partition splits an axis of size cells into chunks of length n.
// The final chunk holds the remainder. If n <= 0 or n > size the
// whole axis becomes a single chunk.
func Partition(size, n int) Boundaries {
	if size <= 0 {
		return nil
	}
	if n <= 0 || n > size {
		n = size
	}
	b := make(Boundaries, (size+n-1)/n)
	for i := range b {
		off := i * n
		l := n
		if off+l > size {
			l = size - off
		}
		b[i] = Span{Offset: off, Len: l}
	}
	return b
}

// Len returns the number of chunks.
func (b Boundaries) Len() int { return len(b) }

// Size returns the number of cells covered.
func (b Boundaries) Size() int {
	if len(b) == 0 {
		return 0
	}
	last := b[len(b)-1]
	return last.Offset + last.Len
}

// Sizes returns the length of each chunk.
func (b Boundaries) Sizes() []int {
	o := make([]int, len(b))
	for i, s := range b {
		o[i] = s.Len
	}
	return o
}

// Locate returns the index of the chunk holding cell i, or -1 if i is
// outside of the axis.
func (b Boundaries) Locate(i int) int {
	if i < 0 || i >= b.Size() {
		return -1
	}
	return sort.Search(len(b), func(j int) bool { return b[j].Offset+b[j].Len > i })
}

// Equal reports whether b and o describe the same chunks.
func (b Boundaries) Equal(o Boundaries) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// ChunkMode is the kind of chunking a ChunkPolicy requests.
type ChunkMode int

const (
	// ChunkDisabled loads every axis as one chunk.
	ChunkDisabled ChunkMode = iota
	// ChunkAuto sizes spatial chunks to a byte budget and loads time one
	// slice at a time.
	ChunkAuto
	// ChunkExplicit uses lengths given by the caller.
	ChunkExplicit
)

// NamedChunk requests chunks of length Len along the source dimension
// called Dim.
type NamedChunk struct {
	Dim string
	Len int
}

// ChunkPolicy describes how the axes of a field should be split into
// chunks. The zero value disables chunking.
type ChunkPolicy struct {
	Mode ChunkMode

	positional []int
	named      map[Axis]NamedChunk
}

// Disabled returns a policy that loads each axis as a single chunk.
func Disabled() ChunkPolicy { return ChunkPolicy{Mode: ChunkDisabled} }

// Auto returns a policy that sizes chunks automatically.
func Auto() ChunkPolicy { return ChunkPolicy{Mode: ChunkAuto} }

// Positional returns a policy with explicit chunk lengths ordered
// (time, depth, lat, lon). Fewer than four lengths are aligned to the
// right, so Positional(75, 16, 16) gives depth, lat and lon lengths.
func Positional(lengths ...int) ChunkPolicy {
	return ChunkPolicy{Mode: ChunkExplicit, positional: append([]int(nil), lengths...)}
}

// Named returns a policy with explicit chunk lengths for the named
// source dimensions.
func Named(m map[Axis]NamedChunk) ChunkPolicy {
	c := make(map[Axis]NamedChunk, len(m))
	for a, n := range m {
		c[a] = n
	}
	return ChunkPolicy{Mode: ChunkExplicit, named: c}
}

func (p ChunkPolicy) String() string {
	switch p.Mode {
	case ChunkDisabled:
		return "false"
	case ChunkAuto:
		return "auto"
	}
	if p.named != nil {
		var s []string
		for _, a := range Axes {
			if n, ok := p.named[a]; ok {
				s = append(s, fmt.Sprintf("%s:%s=%d", a, n.Dim, n.Len))
			}
		}
		return strings.Join(s, ",")
	}
	s := make([]string, len(p.positional))
	for i, l := range p.positional {
		s[i] = fmt.Sprint(l)
	}
	return strings.Join(s, ",")
}

// lengths resolves the policy for a field with the given dimensions
// into a chunk length per axis. Lengths are normalized so that a whole
// axis is always represented by its size.
func (p ChunkPolicy) lengths(field string, dims []Dimension, names NameMap, budget, elemSize int) (map[Axis]int, error) {
	o := make(map[Axis]int, len(dims))
	switch p.Mode {
	case ChunkDisabled:
		for _, d := range dims {
			o[d.Axis] = d.Size
		}
	case ChunkAuto:
		for a, l := range autoLengths(dims, budget, elemSize) {
			o[a] = l
		}
	case ChunkExplicit:
		for _, d := range dims {
			o[d.Axis] = defaultLength(d)
		}
		if p.named != nil {
			for a, n := range p.named {
				d, err := resolveDim(field, dims, names, a, n.Dim)
				if err != nil {
					return nil, err
				}
				o[d.Axis] = normalizeLength(n.Len, d.Size)
			}
			break
		}
		if len(p.positional) > len(Axes) {
			return nil, configErrorf("field %s: %d positional chunk lengths given but at most %d are allowed",
				field, len(p.positional), len(Axes))
		}
		shift := len(Axes) - len(p.positional)
		for i, l := range p.positional {
			a := Axes[shift+i]
			for _, d := range dims {
				if d.Axis == a {
					o[a] = normalizeLength(l, d.Size)
				}
			}
		}
	default:
		return nil, configErrorf("field %s: invalid chunk mode %d", field, p.Mode)
	}
	return o, nil
}

// defaultLength is the length used for an axis that an explicit policy
// does not mention, and the length that coupled fields fall back to
// when their requests disagree.
func defaultLength(d Dimension) int {
	if d.Axis == Time {
		return 1
	}
	return d.Size
}

func normalizeLength(n, size int) int {
	if n <= 0 || n > size {
		return size
	}
	return n
}

// resolveDim finds the dimension of a field that a named chunk request
// refers to.
func resolveDim(field string, dims []Dimension, names NameMap, a Axis, name string) (Dimension, error) {
	for _, d := range dims {
		if d.Name == name {
			return d, nil
		}
	}
	if names.accepts(a, name) {
		for _, d := range dims {
			if d.Axis == a {
				return d, nil
			}
		}
	}
	return Dimension{}, configErrorf("field %s: chunk request refers to dimension %q, which the field does not have", field, name)
}

// autoLengths chooses spatial chunk lengths so that one chunk holds
// roughly budget bytes. Axes are filled smallest first, each taking the
// k-th root of the remaining element budget. Time is loaded one slice
// at a time.
func autoLengths(dims []Dimension, budget, elemSize int) map[Axis]int {
	if budget <= 0 {
		budget = DefaultAutoChunkBytes
	}
	if elemSize <= 0 {
		elemSize = 4
	}
	target := float64(budget / elemSize)
	if target < 1 {
		target = 1
	}
	o := make(map[Axis]int, len(dims))
	var spatial []Dimension
	for _, d := range dims {
		if d.Axis == Time {
			o[Time] = 1
			continue
		}
		spatial = append(spatial, d)
	}
	sort.SliceStable(spatial, func(i, j int) bool { return spatial[i].Size < spatial[j].Size })
	for i, d := range spatial {
		k := float64(len(spatial) - i)
		l := int(math.Ceil(math.Pow(target, 1/k) - 1e-9))
		if l < 1 {
			l = 1
		}
		if l > d.Size {
			l = d.Size
		}
		o[d.Axis] = l
		target /= float64(l)
	}
	return o
}
