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

import "fmt"

// ChunkStatus is the load status of one spatial chunk.
type ChunkStatus uint8

// Chunk statuses.
const (
	ChunkUnloaded ChunkStatus = iota
	ChunkLoaded
)

// ChunkLoadState records which spatial chunks of a grid have been
// touched. Chunks are never unloaded once touched.
type ChunkLoadState struct {
	status []ChunkStatus
	loaded int
}

// NewChunkLoadState returns a table of n unloaded chunks.
func NewChunkLoadState(n int) *ChunkLoadState {
	if n < 1 {
		n = 1
	}
	return &ChunkLoadState{status: make([]ChunkStatus, n)}
}

// Touch marks chunk i as loaded. It reports whether this was the first
// touch of the chunk.
func (s *ChunkLoadState) Touch(i int) (bool, error) {
	if i < 0 || i >= len(s.status) {
		return false, fmt.Errorf("%w: chunk %d of %d", ErrChunkIndex, i, len(s.status))
	}
	if s.status[i] == ChunkLoaded {
		return false, nil
	}
	s.status[i] = ChunkLoaded
	s.loaded++
	return true, nil
}

// IsLoaded reports whether chunk i has been touched.
func (s *ChunkLoadState) IsLoaded(i int) bool {
	return i >= 0 && i < len(s.status) && s.status[i] == ChunkLoaded
}

// LoadedCount returns the number of touched chunks.
func (s *ChunkLoadState) LoadedCount() int { return s.loaded }

// TotalCount returns the number of chunks.
func (s *ChunkLoadState) TotalCount() int { return len(s.status) }

// Status returns a copy of the status table.
func (s *ChunkLoadState) Status() []ChunkStatus {
	return append([]ChunkStatus(nil), s.status...)
}

// Loaded returns the indices of the touched chunks in increasing order.
func (s *ChunkLoadState) Loaded() []int {
	o := make([]int, 0, s.loaded)
	for i, st := range s.status {
		if st == ChunkLoaded {
			o = append(o, i)
		}
	}
	return o
}
