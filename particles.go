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
	"strings"
	"sync"
)

// Position is a location in field coordinates.
type Position struct {
	Lon, Lat, Depth float64
}

// ParticleContainer stores the state of a group of particles. The time
// stepping code only uses these accessors, so the storage layout is up
// to the implementation.
type ParticleContainer interface {
	Len() int
	ID(i int) int64
	Time(i int) float64
	SetTime(i int, t float64)
	DT(i int) float64
	SetDT(i int, dt float64)
	Position(i int) Position
	SetPosition(i int, p Position)

	// Add appends one particle at each of the given positions, all at
	// time t, with IDs taken from ids.
	Add(ids *IDGenerator, t float64, positions ...Position) error
}

// Storage selects a ParticleContainer implementation.
type Storage int

const (
	// StorageSoA stores each particle attribute in its own slice.
	StorageSoA Storage = iota
	// StorageAoS stores one struct per particle.
	StorageAoS
)

func (s Storage) String() string {
	switch s {
	case StorageSoA:
		return "soa"
	case StorageAoS:
		return "aos"
	}
	return fmt.Sprintf("Storage(%d)", int(s))
}

// ParseStorage returns the storage layout with the given name.
func ParseStorage(s string) (Storage, error) {
	switch strings.ToLower(s) {
	case "soa", "":
		return StorageSoA, nil
	case "aos":
		return StorageAoS, nil
	}
	return 0, configErrorf("invalid particle storage %q; should be soa or aos", s)
}

// NewParticleContainer returns an empty container with the given storage
// layout.
func NewParticleContainer(s Storage) (ParticleContainer, error) {
	switch s {
	case StorageSoA:
		return new(SoA), nil
	case StorageAoS:
		return new(AoS), nil
	}
	return nil, configErrorf("invalid particle storage %d", int(s))
}

// SoA is a ParticleContainer with one slice per attribute.
type SoA struct {
	ids             []int64
	times, dts      []float64
	lon, lat, depth []float64
}

func (s *SoA) Len() int                  { return len(s.ids) }
func (s *SoA) ID(i int) int64            { return s.ids[i] }
func (s *SoA) Time(i int) float64        { return s.times[i] }
func (s *SoA) SetTime(i int, t float64)  { s.times[i] = t }
func (s *SoA) DT(i int) float64          { return s.dts[i] }
func (s *SoA) SetDT(i int, dt float64)   { s.dts[i] = dt }
func (s *SoA) Position(i int) Position   { return Position{Lon: s.lon[i], Lat: s.lat[i], Depth: s.depth[i]} }
func (s *SoA) SetPosition(i int, p Position) {
	s.lon[i], s.lat[i], s.depth[i] = p.Lon, p.Lat, p.Depth
}

// Add implements ParticleContainer.
func (s *SoA) Add(ids *IDGenerator, t float64, positions ...Position) error {
	for _, p := range positions {
		id, err := ids.Next()
		if err != nil {
			return err
		}
		s.ids = append(s.ids, id)
		s.times = append(s.times, t)
		s.dts = append(s.dts, math.NaN())
		s.lon = append(s.lon, p.Lon)
		s.lat = append(s.lat, p.Lat)
		s.depth = append(s.depth, p.Depth)
	}
	return nil
}

type particle struct {
	id       int64
	time, dt float64
	pos      Position
}

// AoS is a ParticleContainer with one struct per particle.
type AoS []particle

func (a *AoS) Len() int                      { return len(*a) }
func (a *AoS) ID(i int) int64                { return (*a)[i].id }
func (a *AoS) Time(i int) float64            { return (*a)[i].time }
func (a *AoS) SetTime(i int, t float64)      { (*a)[i].time = t }
func (a *AoS) DT(i int) float64              { return (*a)[i].dt }
func (a *AoS) SetDT(i int, dt float64)       { (*a)[i].dt = dt }
func (a *AoS) Position(i int) Position       { return (*a)[i].pos }
func (a *AoS) SetPosition(i int, p Position) { (*a)[i].pos = p }

// Add implements ParticleContainer.
func (a *AoS) Add(ids *IDGenerator, t float64, positions ...Position) error {
	for _, p := range positions {
		id, err := ids.Next()
		if err != nil {
			return err
		}
		*a = append(*a, particle{id: id, time: t, dt: math.NaN(), pos: p})
	}
	return nil
}

// IDGenerator hands out unique particle IDs. It must be opened before
// use and closed when the particles it numbers are no longer created.
type IDGenerator struct {
	mu   sync.Mutex
	next int64
	open bool
}

// NewIDGenerator returns a closed generator whose first ID is start.
func NewIDGenerator(start int64) *IDGenerator {
	return &IDGenerator{next: start}
}

// Open makes the generator ready to issue IDs.
func (g *IDGenerator) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return fmt.Errorf("drift: ID generator is already open")
	}
	g.open = true
	return nil
}

// Next returns a new ID.
func (g *IDGenerator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return 0, fmt.Errorf("drift: ID generator is closed")
	}
	id := g.next
	g.next++
	return id, nil
}

// Close stops the generator from issuing IDs.
func (g *IDGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return fmt.Errorf("drift: ID generator is not open")
	}
	g.open = false
	return nil
}
