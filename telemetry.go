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
	"runtime"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// TimingLog accumulates the wall time spent in one phase of a run, per
// iteration of the time stepping loop.
type TimingLog struct {
	start   time.Time
	running bool
	current time.Duration
	samples []float64 // seconds per iteration
}

// Start starts the clock.
func (l *TimingLog) Start() {
	l.start = time.Now()
	l.running = true
}

// Stop stops the clock and adds the elapsed time to the current
// iteration.
func (l *TimingLog) Stop() {
	if !l.running {
		return
	}
	l.current += time.Since(l.start)
	l.running = false
}

// AdvanceIteration records the current iteration and starts a new one.
func (l *TimingLog) AdvanceIteration() {
	l.Stop()
	l.samples = append(l.samples, l.current.Seconds())
	l.current = 0
}

// Samples returns the recorded seconds per iteration.
func (l *TimingLog) Samples() []float64 { return l.samples }

// ParamLog records one value per iteration.
type ParamLog struct {
	samples []float64
}

// AdvanceIteration records v for the current iteration.
func (l *ParamLog) AdvanceIteration(v float64) { l.samples = append(l.samples, v) }

// Samples returns the recorded values.
func (l *ParamLog) Samples() []float64 { return l.samples }

// Reducer combines a value across the processes taking part in a run.
type Reducer interface {
	Reduce(v float64) (float64, error)
}

// LocalReducer is the Reducer for a run in a single process.
type LocalReducer struct{}

// Reduce implements Reducer.
func (LocalReducer) Reduce(v float64) (float64, error) { return v, nil }

// Telemetry holds the timing and parameter logs of a run.
type Telemetry struct {
	Total, Compute, IO, MemIO, Plot TimingLog

	NParticles, Memory ParamLog

	// Reducer combines memory use across processes. It defaults to
	// LocalReducer.
	Reducer Reducer

	// MemoryFunc returns the memory used by this process in bytes. It
	// defaults to the memory obtained from the operating system by the
	// Go runtime.
	MemoryFunc func() float64
}

// NewTelemetry returns an empty set of logs.
func NewTelemetry() *Telemetry {
	return &Telemetry{Reducer: LocalReducer{}, MemoryFunc: runtimeMemory}
}

func runtimeMemory() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Sys)
}

// recordMemory measures memory use and reduces it across processes.
func (t *Telemetry) recordMemory() error {
	mem := 0.
	if t.MemoryFunc != nil {
		mem = t.MemoryFunc()
	}
	if t.Reducer != nil {
		var err error
		if mem, err = t.Reducer.Reduce(mem); err != nil {
			return fmt.Errorf("drift: reducing memory use: %v", err)
		}
	}
	t.Memory.AdvanceIteration(mem)
	return nil
}

// advanceIteration closes the current iteration of every timing log.
func (t *Telemetry) advanceIteration() {
	t.Compute.AdvanceIteration()
	t.IO.AdvanceIteration()
	t.MemIO.AdvanceIteration()
	t.Plot.AdvanceIteration()
	t.Total.AdvanceIteration()
}

// IterationRecord is one row of the per-iteration telemetry table.
type IterationRecord struct {
	Iteration  int     `csv:"iteration"`
	Total      float64 `csv:"total_s"`
	Compute    float64 `csv:"compute_s"`
	IO         float64 `csv:"io_s"`
	MemIO      float64 `csv:"mem_io_s"`
	Plot       float64 `csv:"plot_s"`
	NParticles float64 `csv:"nparticles"`
	Memory     float64 `csv:"memory_bytes"`
}

// Records returns one record per completed iteration.
func (t *Telemetry) Records() []IterationRecord {
	n := len(t.Total.samples)
	at := func(s []float64, i int) float64 {
		if i < len(s) {
			return s[i]
		}
		return 0
	}
	o := make([]IterationRecord, n)
	for i := range o {
		o[i] = IterationRecord{
			Iteration:  i,
			Total:      at(t.Total.samples, i),
			Compute:    at(t.Compute.samples, i),
			IO:         at(t.IO.samples, i),
			MemIO:      at(t.MemIO.samples, i),
			Plot:       at(t.Plot.samples, i),
			NParticles: at(t.NParticles.samples, i),
			Memory:     at(t.Memory.samples, i),
		}
	}
	return o
}

// WriteCSV writes the per-iteration records to w.
func (t *Telemetry) WriteCSV(w io.Writer) error {
	r := t.Records()
	if err := gocsv.Marshal(&r, w); err != nil {
		return fmt.Errorf("drift: writing telemetry: %w", err)
	}
	return nil
}

// PhaseSummary summarizes one log.
type PhaseSummary struct {
	Total float64 `yaml:"total"`
	Mean  float64 `yaml:"mean"`
	Std   float64 `yaml:"std"`
	Max   float64 `yaml:"max"`
}

func summarize(s []float64) PhaseSummary {
	if len(s) == 0 {
		return PhaseSummary{}
	}
	ps := PhaseSummary{
		Total: floats.Sum(s),
		Max:   floats.Max(s),
	}
	ps.Mean, ps.Std = stat.MeanStdDev(s, nil)
	if len(s) < 2 {
		ps.Std = 0
	}
	return ps
}

// Summary is the whole-run telemetry summary.
type Summary struct {
	Iterations int                     `yaml:"iterations"`
	Timings    map[string]PhaseSummary `yaml:"timings_s"`
	NParticles PhaseSummary            `yaml:"nparticles"`
	Memory     PhaseSummary            `yaml:"memory_bytes"`
}

// Summary summarizes the logs.
func (t *Telemetry) Summary() Summary {
	return Summary{
		Iterations: len(t.Total.samples),
		Timings: map[string]PhaseSummary{
			"total":   summarize(t.Total.samples),
			"compute": summarize(t.Compute.samples),
			"io":      summarize(t.IO.samples),
			"mem_io":  summarize(t.MemIO.samples),
			"plot":    summarize(t.Plot.samples),
		},
		NParticles: summarize(t.NParticles.samples),
		Memory:     summarize(t.Memory.samples),
	}
}

// WriteYAML writes the summary to w.
func (t *Telemetry) WriteYAML(w io.Writer) error {
	e := yaml.NewEncoder(w)
	if err := e.Encode(t.Summary()); err != nil {
		return fmt.Errorf("drift: writing telemetry summary: %w", err)
	}
	return e.Close()
}
