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
along with Drift.  If not, see <http://www.gnu.org/licenses/>.*/

package hash

import "testing"

type span struct{ Offset, Len int }

func TestKey(t *testing.T) {
	a := Key([]span{{0, 16}, {16, 16}}, []int{1, 2})
	b := Key([]span{{0, 16}, {16, 16}}, []int{1, 2})
	if a != b {
		t.Errorf("equal values gave different keys: %s, %s", a, b)
	}
	c := Key([]span{{0, 16}, {16, 4}}, []int{1, 2})
	if a == c {
		t.Error("different values gave the same key")
	}
	if Key(1, 2) == Key(2, 1) {
		t.Error("key should depend on order")
	}
}
