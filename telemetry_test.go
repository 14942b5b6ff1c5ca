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
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

type failingReducer struct{}

func (failingReducer) Reduce(float64) (float64, error) { return 0, errors.New("no peers") }

type doublingReducer struct{}

func (doublingReducer) Reduce(v float64) (float64, error) { return 2 * v, nil }

func TestTimingLog(t *testing.T) {
	var l TimingLog
	l.Start()
	l.Stop()
	l.Stop() // no effect
	first := l.current
	l.AdvanceIteration()
	l.Stop()
	l.AdvanceIteration()
	s := l.Samples()
	if len(s) != 2 || s[0] != first.Seconds() || s[0] < 0 || s[1] != 0 {
		t.Errorf("have %v", s)
	}
}

func TestTelemetry(t *testing.T) {
	tel := NewTelemetry()
	tel.Reducer = doublingReducer{}
	mem := 100.
	tel.MemoryFunc = func() float64 { return mem }
	for i := 0; i < 3; i++ {
		tel.Compute.current = time.Duration(i+1) * time.Second
		tel.NParticles.AdvanceIteration(float64(10 * (i + 1)))
		if err := tel.recordMemory(); err != nil {
			t.Fatal(err)
		}
		mem += 100
		tel.advanceIteration()
	}
	recs := tel.Records()
	if len(recs) != 3 {
		t.Fatalf("have %d records, want 3", len(recs))
	}
	if recs[2].Compute != 3 || recs[2].NParticles != 30 || recs[2].Memory != 600 || recs[2].Iteration != 2 {
		t.Errorf("have %+v", recs[2])
	}

	b := new(bytes.Buffer)
	if err := tel.WriteCSV(b); err != nil {
		t.Fatal(err)
	}
	var back []IterationRecord
	if err := gocsv.UnmarshalString(b.String(), &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != 3 || back[1].Compute != 2 {
		t.Errorf("have %+v", back)
	}

	s := tel.Summary()
	if s.Iterations != 3 {
		t.Errorf("have %d iterations, want 3", s.Iterations)
	}
	c := s.Timings["compute"]
	if c.Total != 6 || c.Mean != 2 || c.Max != 3 || math.Abs(c.Std-1) > 1e-12 {
		t.Errorf("compute summary: have %+v", c)
	}
	b.Reset()
	if err := tel.WriteYAML(b); err != nil {
		t.Fatal(err)
	}
	var sum Summary
	if err := yaml.Unmarshal(b.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.NParticles.Max != 30 || sum.Memory.Total != 1200 {
		t.Errorf("have %+v", sum)
	}
	if !strings.Contains(b.String(), "timings_s:") {
		t.Errorf("have %s", b.String())
	}
}

func TestTelemetryReduceError(t *testing.T) {
	tel := NewTelemetry()
	tel.Reducer = failingReducer{}
	if err := tel.recordMemory(); err == nil {
		t.Error("expected an error")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if s := summarize(nil); s != (PhaseSummary{}) {
		t.Errorf("have %+v", s)
	}
	if s := summarize([]float64{4}); s.Std != 0 || s.Mean != 4 {
		t.Errorf("have %+v", s)
	}
}

func TestCSVWriter(t *testing.T) {
	ids := NewIDGenerator(0)
	if err := ids.Open(); err != nil {
		t.Fatal(err)
	}
	c, _ := NewParticleContainer(StorageAoS)
	b := new(bytes.Buffer)
	w := NewCSVWriter(b)
	// An empty snapshot writes nothing, not even the header.
	if err := w.Write(c, 0); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Errorf("have %q", b.String())
	}
	if err := c.Add(ids, 0, Position{Lon: 1.5, Lat: -2}, Position{Depth: 10}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(c, 0); err != nil {
		t.Fatal(err)
	}
	c.SetTime(0, 60)
	if err := w.Write(c, 60); err != nil {
		t.Fatal(err)
	}
	if w.Snapshots() != 3 {
		t.Errorf("have %d snapshots, want 3", w.Snapshots())
	}
	if n := strings.Count(b.String(), "obs_time"); n != 1 {
		t.Errorf("header written %d times", n)
	}
	var recs []ParticleRecord
	if err := gocsv.UnmarshalString(b.String(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 {
		t.Fatalf("have %d rows, want 4", len(recs))
	}
	want := ParticleRecord{ObsTime: 60, ID: 0, Time: 60, Lon: 1.5, Lat: -2}
	if recs[2] != want {
		t.Errorf("have %+v, want %+v", recs[2], want)
	}
	if recs[3].Depth != 10 || recs[3].ID != 1 {
		t.Errorf("have %+v", recs[3])
	}
}
