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
	"io"

	"github.com/gocarina/gocsv"
)

// ParticleWriter records snapshots of particle state.
type ParticleWriter interface {
	Write(p ParticleContainer, t float64) error
}

// ParticleRecord is one particle in a snapshot.
type ParticleRecord struct {
	ObsTime float64 `csv:"obs_time"`
	ID      int64   `csv:"id"`
	Time    float64 `csv:"time"`
	Lon     float64 `csv:"lon"`
	Lat     float64 `csv:"lat"`
	Depth   float64 `csv:"depth"`
}

// CSVWriter writes particle snapshots as CSV rows.
type CSVWriter struct {
	w             io.Writer
	headerWritten bool
	snapshots     int
}

// NewCSVWriter returns a writer that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter { return &CSVWriter{w: w} }

// Snapshots returns the number of snapshots written.
func (c *CSVWriter) Snapshots() int { return c.snapshots }

// Write implements ParticleWriter.
func (c *CSVWriter) Write(p ParticleContainer, t float64) error {
	records := make([]ParticleRecord, p.Len())
	for i := range records {
		pos := p.Position(i)
		records[i] = ParticleRecord{
			ObsTime: t,
			ID:      p.ID(i),
			Time:    p.Time(i),
			Lon:     pos.Lon,
			Lat:     pos.Lat,
			Depth:   pos.Depth,
		}
	}
	c.snapshots++
	if len(records) == 0 {
		return nil
	}
	if !c.headerWritten {
		if err := gocsv.Marshal(&records, c.w); err != nil {
			return fmt.Errorf("drift: writing particles: %w", err)
		}
		c.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(&records, c.w); err != nil {
		return fmt.Errorf("drift: writing particles: %w", err)
	}
	return nil
}
