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

// Package hash creates structural keys for values that cannot be used
// as map keys directly.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a key that is equal for structurally equal parts.
// Parts are encoded in order, so Key(a, b) and Key(b, a) differ.
func Key(parts ...interface{}) string {
	h := fnv.New128a()
	e := gob.NewEncoder(h)
	for i, p := range parts {
		if err := e.Encode(p); err != nil {
			// gob cannot encode some values (nil pointers, NaN keys),
			// so fall back to printing them.
			printer.Fprintf(h, "%d:%#v", i, p)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
