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

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// MismatchPolicy decides what happens when coupled fields (fields built
// on the same Coords) request different chunk lengths along an axis.
type MismatchPolicy int

const (
	// MismatchFallback gives every coupled field the default chunking
	// along the disputed axis: a single chunk for spatial axes and one
	// slice per chunk for time. The fields then share a grid.
	MismatchFallback MismatchPolicy = iota
	// MismatchSeparate gives each distinct layout its own grid.
	MismatchSeparate
	// MismatchError rejects the fields with a configuration error.
	MismatchError
)

func (m MismatchPolicy) String() string {
	switch m {
	case MismatchFallback:
		return "fallback"
	case MismatchSeparate:
		return "separate"
	case MismatchError:
		return "error"
	}
	return fmt.Sprintf("MismatchPolicy(%d)", int(m))
}

// ParseMismatchPolicy returns the policy with the given name.
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	for _, m := range []MismatchPolicy{MismatchFallback, MismatchSeparate, MismatchError} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, configErrorf("invalid chunk mismatch policy %q; should be one of fallback, separate or error", s)
}

// FieldSpec describes a field to be added to a FieldSet.
type FieldSpec struct {
	Name string

	// Variable is the name of the variable in Source. It defaults to Name.
	Variable string

	Coords *Coords

	// DimNames gives the source dimension name for each axis. Axes that
	// are not listed are named after the axis.
	DimNames map[Axis]string

	Source FieldSource
	Chunks ChunkPolicy

	// ElemSize is the size of one value in bytes, used to size chunks
	// automatically. It defaults to 4.
	ElemSize int
}

// FieldSet holds a group of fields and the grids they are defined on.
type FieldSet struct {
	Fields  []*Field
	GridSet *GridSet

	// Log receives status messages.
	Log logrus.FieldLogger

	byName    map[string]*Field
	names     NameMap
	autoBytes int
	mismatch  MismatchPolicy
}

// FieldSetOption configures a FieldSet.
type FieldSetOption func(*FieldSet) error

// WithNameMap sets the dimension aliases used to resolve named chunk
// requests.
func WithNameMap(m NameMap) FieldSetOption {
	return func(fs *FieldSet) error {
		fs.names = m
		return nil
	}
}

// WithAutoChunkBytes sets the target chunk size for automatic chunking.
func WithAutoChunkBytes(n int) FieldSetOption {
	return func(fs *FieldSet) error {
		if n <= 0 {
			return configErrorf("automatic chunk size must be > 0 bytes but is %d", n)
		}
		fs.autoBytes = n
		return nil
	}
}

// WithMismatchPolicy sets how disagreeing chunk requests of coupled
// fields are handled.
func WithMismatchPolicy(m MismatchPolicy) FieldSetOption {
	return func(fs *FieldSet) error {
		fs.mismatch = m
		return nil
	}
}

// WithTimeExtrapolation allows sampling outside of the time axis, in
// which case the nearest slice is used.
func WithTimeExtrapolation(allow bool) FieldSetOption {
	return func(fs *FieldSet) error {
		fs.GridSet.AllowTimeExtrapolation = allow
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) FieldSetOption {
	return func(fs *FieldSet) error {
		fs.Log = l
		return nil
	}
}

// fieldPlan is a field whose chunk lengths have been resolved but not
// yet registered with a grid.
type fieldPlan struct {
	spec    FieldSpec
	dims    []Dimension
	lengths map[Axis]int
}

// NewFieldSet resolves the chunk policies of the given fields, reconciles
// the requests of coupled fields and assigns every field to a grid.
// All configuration errors are returned here.
func NewFieldSet(specs []FieldSpec, opts ...FieldSetOption) (*FieldSet, error) {
	fs := &FieldSet{
		GridSet:   NewGridSet(),
		Log:       logrus.StandardLogger(),
		byName:    make(map[string]*Field),
		autoBytes: DefaultAutoChunkBytes,
	}
	for _, o := range opts {
		if err := o(fs); err != nil {
			return nil, err
		}
	}

	plans := make([]*fieldPlan, 0, len(specs))
	for _, s := range specs {
		p, err := fs.plan(s)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := fs.reconcile(plans); err != nil {
		return nil, err
	}
	for _, p := range plans {
		g := fs.GridSet.GetOrCreate(p.spec.Coords, p.lengths)
		f := &Field{
			Name:     p.spec.Name,
			Variable: p.spec.Variable,
			Grid:     g,
			dims:     p.dims,
			source:   p.spec.Source,
			slices:   make(map[int]map[int]*sparse.DenseArray),
		}
		fs.Fields = append(fs.Fields, f)
		fs.byName[f.Name] = f
	}
	return fs, nil
}

func (fs *FieldSet) plan(s FieldSpec) (*fieldPlan, error) {
	if s.Name == "" {
		return nil, configErrorf("field name is empty")
	}
	if _, ok := fs.byName[s.Name]; ok {
		return nil, configErrorf("duplicate field name %s", s.Name)
	}
	fs.byName[s.Name] = nil // reserve the name until the field is built
	if s.Coords == nil {
		return nil, configErrorf("field %s has no coordinates", s.Name)
	}
	if s.Source == nil {
		return nil, configErrorf("field %s has no data source", s.Name)
	}
	if s.Variable == "" {
		s.Variable = s.Name
	}
	if s.ElemSize <= 0 {
		s.ElemSize = 4
	}
	var dims []Dimension
	for _, a := range Axes {
		n := s.Coords.Size(a)
		if n == 0 {
			continue
		}
		name := s.DimNames[a]
		if name == "" {
			name = a.String()
		}
		dims = append(dims, Dimension{Name: name, Axis: a, Size: n})
	}
	for a, name := range s.DimNames {
		if s.Coords.Size(a) == 0 {
			return nil, configErrorf("field %s names dimension %s for the %s axis, which its coordinates do not have",
				s.Name, name, a)
		}
	}
	if t := s.Coords.Time; len(t) > 1 {
		for i := 1; i < len(t); i++ {
			if t[i] <= t[i-1] {
				return nil, configErrorf("field %s: time coordinates must increase", s.Name)
			}
		}
	}
	lengths, err := s.Chunks.lengths(s.Name, dims, fs.names, fs.autoBytes, s.ElemSize)
	if err != nil {
		return nil, err
	}
	return &fieldPlan{spec: s, dims: dims, lengths: lengths}, nil
}

// reconcile applies the mismatch policy to groups of coupled fields.
func (fs *FieldSet) reconcile(plans []*fieldPlan) error {
	if fs.mismatch == MismatchSeparate {
		return nil
	}
	var order []*Coords
	groups := make(map[*Coords][]*fieldPlan)
	for _, p := range plans {
		c := p.spec.Coords
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], p)
	}
	for _, c := range order {
		g := groups[c]
		if len(g) < 2 {
			continue
		}
		for _, d := range g[0].dims {
			first := g[0].lengths[d.Axis]
			agree := true
			for _, p := range g[1:] {
				if p.lengths[d.Axis] != first {
					agree = false
					break
				}
			}
			if agree {
				continue
			}
			requested := make(map[string]int, len(g))
			names := make([]string, len(g))
			for i, p := range g {
				requested[p.spec.Name] = p.lengths[d.Axis]
				names[i] = p.spec.Name
			}
			if fs.mismatch == MismatchError {
				return configErrorf("coupled fields %v request different chunk lengths along the %s axis: %v",
					names, d.Axis, requested)
			}
			fallback := defaultLength(d)
			fs.Log.WithFields(logrus.Fields{
				"fields":    names,
				"axis":      d.Axis.String(),
				"requested": requested,
				"fallback":  fallback,
			}).Warn("drift: coupled fields request different chunk lengths; using the default chunking for this axis")
			for _, p := range g {
				p.lengths[d.Axis] = fallback
			}
		}
	}
	return nil
}

// Field returns the field with the given name.
func (fs *FieldSet) Field(name string) (*Field, error) {
	f, ok := fs.byName[name]
	if !ok || f == nil {
		return nil, fmt.Errorf("drift: there is no field named %s", name)
	}
	return f, nil
}

// ComputeTimeChunk moves the time window of every grid so that it
// brackets time t for a run in the given direction, drops time slices
// that left the window and loads the new slices of every chunk that has
// already been touched. It returns the next time at which a window will
// need to move: the earliest such time going forward and the latest
// going backward.
func (fs *FieldSet) ComputeTimeChunk(ctx context.Context, t, direction float64) (float64, error) {
	next := math.Inf(1)
	if direction < 0 {
		next = math.Inf(-1)
	}
	for _, g := range fs.GridSet.Grids() {
		before := g.Time.Window()
		was := g.Time.Initialized()
		w, gnext, err := g.Time.Advance(t, direction)
		if err != nil {
			return next, fmt.Errorf("drift: grid %d: %w", g.ID, err)
		}
		if direction < 0 {
			next = math.Max(next, gnext)
		} else {
			next = math.Min(next, gnext)
		}
		if was && w == before {
			continue
		}
		fs.Log.WithFields(logrus.Fields{
			"grid": g.ID,
			"lo":   w.Lo,
			"hi":   w.Hi,
			"next": gnext,
		}).Debug("drift: time window moved")
		for _, f := range fs.Fields {
			if f.Grid != g {
				continue
			}
			if err := f.shiftWindow(ctx, w); err != nil {
				return next, err
			}
		}
	}
	return next, nil
}

// Close releases the grids of all fields.
func (fs *FieldSet) Close() {
	for _, f := range fs.Fields {
		if f.Grid != nil {
			fs.GridSet.Release(f.Grid)
			f.slices = nil
		}
	}
	fs.Fields = nil
	fs.byName = make(map[string]*Field)
}
