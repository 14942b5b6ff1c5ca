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
	"sync"
	"testing"
)

func TestParticleContainers(t *testing.T) {
	for _, s := range []Storage{StorageSoA, StorageAoS} {
		t.Run(s.String(), func(t *testing.T) {
			ids := NewIDGenerator(10)
			if err := ids.Open(); err != nil {
				t.Fatal(err)
			}
			c, err := NewParticleContainer(s)
			if err != nil {
				t.Fatal(err)
			}
			if err := c.Add(ids, 3, Position{Lon: 1, Lat: 2, Depth: 3}, Position{Lon: 4}); err != nil {
				t.Fatal(err)
			}
			if c.Len() != 2 {
				t.Fatalf("have %d particles, want 2", c.Len())
			}
			if c.ID(0) != 10 || c.ID(1) != 11 {
				t.Errorf("ids: have %d and %d, want 10 and 11", c.ID(0), c.ID(1))
			}
			if c.Time(1) != 3 || !math.IsNaN(c.DT(1)) {
				t.Errorf("new particle has time %g and dt %g", c.Time(1), c.DT(1))
			}
			if have, want := c.Position(0), (Position{Lon: 1, Lat: 2, Depth: 3}); have != want {
				t.Errorf("have %+v, want %+v", have, want)
			}
			c.SetTime(1, 7)
			c.SetDT(1, -2)
			c.SetPosition(1, Position{Lat: 9})
			if c.Time(1) != 7 || c.DT(1) != -2 || c.Position(1).Lat != 9 || c.Position(0).Lat != 2 {
				t.Error("setters changed the wrong particle")
			}
			if err := ids.Close(); err != nil {
				t.Fatal(err)
			}
			if err := c.Add(ids, 0, Position{}); err == nil {
				t.Error("adding with a closed generator should fail")
			}
			if c.Len() != 2 {
				t.Errorf("failed add changed the container to %d particles", c.Len())
			}
		})
	}
}

func TestParseStorage(t *testing.T) {
	for s, want := range map[string]Storage{"soa": StorageSoA, "AoS": StorageAoS, "": StorageSoA} {
		have, err := ParseStorage(s)
		if err != nil || have != want {
			t.Errorf("%q: have %v, %v", s, have, err)
		}
	}
	if _, err := ParseStorage("list"); !errors.Is(err, ErrConfig) {
		t.Errorf("have %v, want a configuration error", err)
	}
	if _, err := NewParticleContainer(Storage(7)); !errors.Is(err, ErrConfig) {
		t.Errorf("have %v, want a configuration error", err)
	}
}

func TestIDGenerator(t *testing.T) {
	g := NewIDGenerator(0)
	if _, err := g.Next(); err == nil {
		t.Error("closed generator should not issue IDs")
	}
	if err := g.Close(); err == nil {
		t.Error("closing a closed generator should fail")
	}
	if err := g.Open(); err != nil {
		t.Fatal(err)
	}
	if err := g.Open(); err == nil {
		t.Error("opening an open generator should fail")
	}

	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.Next()
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Errorf("have %d unique IDs, want %d", len(seen), n)
	}

	// IDs keep increasing across open and close.
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g.Open(); err != nil {
		t.Fatal(err)
	}
	if id, _ := g.Next(); id != n {
		t.Errorf("have %d, want %d", id, n)
	}
}

func TestNewParticleSet(t *testing.T) {
	if _, err := NewParticleSet(nil, StorageSoA, nil, 0, nil); !errors.Is(err, ErrConfig) {
		t.Errorf("have %v, want a configuration error", err)
	}
	if _, err := NewParticleSet(nil, StorageSoA, NewIDGenerator(0), 0, []Position{{}}); err == nil {
		t.Error("a closed generator should fail")
	}
}
