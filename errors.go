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
	"fmt"
)

var (
	// ErrConfig is returned (wrapped) when fields, chunk policies or run
	// options are invalid. It is always raised before any time stepping
	// begins.
	ErrConfig = errors.New("drift: configuration error")

	// ErrTimeOutOfRange is returned (wrapped) when the simulation time lies
	// outside of a field's time axis and time extrapolation is disabled.
	ErrTimeOutOfRange = errors.New("drift: time out of range")

	// ErrChunkIndex is returned (wrapped) when a chunk index falls outside
	// of a grid's chunk table.
	ErrChunkIndex = errors.New("drift: chunk index out of range")
)

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConfig}, args...)...)
}
