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
	"reflect"
	"testing"

	"github.com/kr/pretty"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		size, n int
		want    Boundaries
	}{
		{size: 10, n: 4, want: Boundaries{{0, 4}, {4, 4}, {8, 2}}},
		{size: 10, n: 5, want: Boundaries{{0, 5}, {5, 5}}},
		{size: 10, n: 10, want: Boundaries{{0, 10}}},
		{size: 10, n: 11, want: Boundaries{{0, 10}}},
		{size: 10, n: 0, want: Boundaries{{0, 10}}},
		{size: 10, n: -3, want: Boundaries{{0, 10}}},
		{size: 1, n: 1, want: Boundaries{{0, 1}}},
		{size: 0, n: 4, want: nil},
	}
	for _, test := range tests {
		have := Partition(test.size, test.n)
		if diff := pretty.Diff(have, test.want); len(diff) != 0 {
			t.Errorf("Partition(%d, %d): %v", test.size, test.n, diff)
		}
		if test.size > 0 && have.Size() != test.size {
			t.Errorf("Partition(%d, %d) covers %d cells", test.size, test.n, have.Size())
		}
	}
}

func TestPartitionCount(t *testing.T) {
	for size := 1; size < 40; size++ {
		for n := 1; n <= size; n++ {
			b := Partition(size, n)
			if want := (size + n - 1) / n; b.Len() != want {
				t.Fatalf("Partition(%d, %d): have %d chunks, want %d", size, n, b.Len(), want)
			}
			for i, s := range b {
				if s.Len <= 0 || s.Len > n {
					t.Fatalf("Partition(%d, %d): chunk %d has length %d", size, n, i, s.Len)
				}
			}
		}
	}
}

func TestBoundariesLocate(t *testing.T) {
	b := Partition(10, 4)
	for i, want := range []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2} {
		if have := b.Locate(i); have != want {
			t.Errorf("cell %d: have %d, want %d", i, have, want)
		}
	}
	if b.Locate(-1) != -1 || b.Locate(10) != -1 {
		t.Error("cells outside of the axis should not be located")
	}
	if !b.Equal(Partition(10, 4)) || b.Equal(Partition(10, 5)) {
		t.Error("Equal is wrong")
	}
	if have, want := b.Sizes(), []int{4, 4, 2}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

// nemoDims are the dimensions of an ocean model field.
func nemoDims(depthName string) []Dimension {
	return []Dimension{
		{Name: "time_counter", Axis: Time, Size: 3},
		{Name: depthName, Axis: Depth, Size: 75},
		{Name: "y", Axis: Lat, Size: 201},
		{Name: "x", Axis: Lon, Size: 151},
	}
}

func TestChunkPolicyLengths(t *testing.T) {
	names := NameMap{Depth: {"depthu", "depthv", "depthw"}}
	tests := []struct {
		name   string
		policy ChunkPolicy
		want   map[Axis]int
		err    bool
	}{
		{
			name:   "disabled",
			policy: Disabled(),
			want:   map[Axis]int{Time: 3, Depth: 75, Lat: 201, Lon: 151},
		},
		{
			name:   "zero value",
			policy: ChunkPolicy{},
			want:   map[Axis]int{Time: 3, Depth: 75, Lat: 201, Lon: 151},
		},
		{
			name:   "positional",
			policy: Positional(75, 16, 16),
			want:   map[Axis]int{Time: 1, Depth: 75, Lat: 16, Lon: 16},
		},
		{
			name:   "positional with time",
			policy: Positional(2, 25, 16, 16),
			want:   map[Axis]int{Time: 2, Depth: 25, Lat: 16, Lon: 16},
		},
		{
			name:   "positional clamped",
			policy: Positional(0, 500, -1),
			want:   map[Axis]int{Time: 1, Depth: 75, Lat: 201, Lon: 151},
		},
		{
			name:   "positional too long",
			policy: Positional(1, 2, 3, 4, 5),
			err:    true,
		},
		{
			name:   "named exact",
			policy: Named(map[Axis]NamedChunk{Depth: {"depthu", 25}, Lat: {"y", 16}}),
			want:   map[Axis]int{Time: 1, Depth: 25, Lat: 16, Lon: 151},
		},
		{
			name:   "named alias",
			policy: Named(map[Axis]NamedChunk{Depth: {"depthv", 25}}),
			want:   map[Axis]int{Time: 1, Depth: 25, Lat: 201, Lon: 151},
		},
		{
			name:   "named missing",
			policy: Named(map[Axis]NamedChunk{Depth: {"deptht", 25}}),
			err:    true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have, err := test.policy.lengths("U", nemoDims("depthu"), names, DefaultAutoChunkBytes, 4)
			if test.err {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("have error %v, want a configuration error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := pretty.Diff(have, test.want); len(diff) != 0 {
				t.Error(diff)
			}
		})
	}
}

func TestAutoLengths(t *testing.T) {
	have := autoLengths(nemoDims("depthu"), DefaultAutoChunkBytes, 4)
	want := map[Axis]int{Time: 1, Depth: 41, Lat: 40, Lon: 40}
	if diff := pretty.Diff(have, want); len(diff) != 0 {
		t.Fatal(diff)
	}

	// Small fields fit in one chunk.
	small := []Dimension{{Name: "y", Axis: Lat, Size: 10}, {Name: "x", Axis: Lon, Size: 20}}
	have = autoLengths(small, DefaultAutoChunkBytes, 4)
	want = map[Axis]int{Lat: 10, Lon: 20}
	if diff := pretty.Diff(have, want); len(diff) != 0 {
		t.Error(diff)
	}

	// A tiny budget still gives chunks of at least one cell.
	have = autoLengths(small, 1, 8)
	want = map[Axis]int{Lat: 1, Lon: 1}
	if diff := pretty.Diff(have, want); len(diff) != 0 {
		t.Error(diff)
	}
}

func TestChunkPolicyString(t *testing.T) {
	for _, test := range []struct {
		p    ChunkPolicy
		want string
	}{
		{Disabled(), "false"},
		{Auto(), "auto"},
		{Positional(75, 16, 16), "75,16,16"},
		{Named(map[Axis]NamedChunk{Lon: {"x", 4}, Depth: {"depthu", 75}}), "depth:depthu=75,lon:x=4"},
	} {
		if have := test.p.String(); have != test.want {
			t.Errorf("have %s, want %s", have, test.want)
		}
	}
}

func TestParseAxis(t *testing.T) {
	for s, want := range map[string]Axis{"time": Time, "Depth": Depth, "latitude": Lat, " lon ": Lon, "x": Lon} {
		have, err := ParseAxis(s)
		if err != nil {
			t.Errorf("%s: %v", s, err)
		} else if have != want {
			t.Errorf("%s: have %v, want %v", s, have, want)
		}
	}
	if _, err := ParseAxis("height"); !errors.Is(err, ErrConfig) {
		t.Errorf("have %v, want a configuration error", err)
	}
}
