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
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// executeOnceThreshold is the run length below which a run is treated
// as having zero duration.
const executeOnceThreshold = 1e-5

// ParticleSet is a group of particles advected through a FieldSet.
type ParticleSet struct {
	Particles ParticleContainer
	FieldSet  *FieldSet
	IDs       *IDGenerator

	// RepeatDT is the interval at which particles are released again at
	// RepeatPositions. Zero disables repeated releases.
	RepeatDT        float64
	RepeatPositions []Position

	// RepeatStart is the time of the first release. It is set by the
	// first call to Execute if it is nil.
	RepeatStart *float64

	Telemetry *Telemetry
	Log       logrus.FieldLogger
}

// NewParticleSet creates particles at the given positions and time in a
// container with the given storage layout. A NaN time means the
// particles start at the beginning (or, for backward runs, the end) of
// the field time range. ids must be open.
func NewParticleSet(fs *FieldSet, s Storage, ids *IDGenerator, t float64, positions []Position) (*ParticleSet, error) {
	if ids == nil {
		return nil, configErrorf("particle set needs an ID generator")
	}
	c, err := NewParticleContainer(s)
	if err != nil {
		return nil, err
	}
	if err := c.Add(ids, t, positions...); err != nil {
		return nil, err
	}
	ps := &ParticleSet{
		Particles: c,
		FieldSet:  fs,
		IDs:       ids,
		Telemetry: NewTelemetry(),
		Log:       logrus.StandardLogger(),
	}
	if fs != nil && fs.Log != nil {
		ps.Log = fs.Log
	}
	return ps, nil
}

// ExecuteConfig holds the options of one run.
type ExecuteConfig struct {
	Kernel Kernel

	// EndTime and Runtime give the end of the run. At most one may be
	// set. If neither is, the run ends at the end (or, for backward
	// runs, the start) of the field time range.
	EndTime, Runtime *float64

	// DT is the time step. Negative steps run backward in time. A zero
	// step evaluates the kernel once without moving time.
	DT float64

	// OutputDT is the interval between particle snapshots written to
	// Output. Snapshots are also written at the start and end of a run.
	OutputDT float64
	Output   ParticleWriter

	// MovieDT is the interval between calls to Movie.
	MovieDT float64
	Movie   func(ctx context.Context, t float64) error

	// Callbacks are called every CallbackDT. If CallbackDT is not set it
	// defaults to the smallest of MovieDT, OutputDT and the particle
	// set's RepeatDT.
	CallbackDT float64
	Callbacks  []func(ctx context.Context, t float64) error
}

// Execute runs the kernel over the particle set, stopping at every
// release, output, movie and callback time, and at every time where
// a field's time window must move.
func (ps *ParticleSet) Execute(ctx context.Context, cfg ExecuteConfig) error {
	if cfg.Kernel == nil {
		return configErrorf("no kernel to execute")
	}
	if cfg.EndTime != nil && cfg.Runtime != nil {
		return configErrorf("only one of endtime and runtime can be specified")
	}
	for _, d := range []struct {
		name string
		v    float64
	}{{"runtime", deref(cfg.Runtime)}, {"outputdt", cfg.OutputDT}, {"moviedt", cfg.MovieDT}, {"callbackdt", cfg.CallbackDT}, {"repeatdt", ps.RepeatDT}} {
		if d.v < 0 || math.IsNaN(d.v) {
			return configErrorf("%s must be positive but is %g", d.name, d.v)
		}
	}
	tel := ps.Telemetry
	if tel == nil {
		tel = NewTelemetry()
		ps.Telemetry = tel
	}
	log := ps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := ps.Particles
	dt := cfg.DT

	tmin, tmax := math.NaN(), math.NaN()
	if ps.FieldSet != nil {
		tmin, tmax = ps.FieldSet.GridSet.TimeRange()
	}
	for i := 0; i < p.Len(); i++ {
		if math.IsNaN(p.Time(i)) {
			if dt >= 0 {
				p.SetTime(i, zeroIfNaN(tmin))
			} else {
				p.SetTime(i, zeroIfNaN(tmax))
			}
		}
	}

	start := math.NaN()
	for i := 0; i < p.Len(); i++ {
		t := p.Time(i)
		if math.IsNaN(start) || (dt >= 0 && t < start) || (dt < 0 && t > start) {
			start = t
		}
	}
	if math.IsNaN(start) {
		if dt >= 0 {
			start = zeroIfNaN(tmin)
		} else {
			start = zeroIfNaN(tmax)
		}
	}
	if ps.RepeatDT > 0 && ps.RepeatStart == nil {
		rs := start
		ps.RepeatStart = &rs
	}

	var end float64
	switch {
	case cfg.Runtime != nil:
		end = start + *cfg.Runtime*sign(dt)
	case cfg.EndTime != nil:
		end = *cfg.EndTime
	case dt >= 0:
		end = zeroIfNaN(tmax)
	default:
		end = zeroIfNaN(tmin)
	}

	executeOnce := false
	if math.Abs(end-start) < executeOnceThreshold || dt == 0 || (cfg.Runtime != nil && *cfg.Runtime == 0) {
		dt = 0
		end = start
		executeOnce = true
		log.Warn("drift: dt or runtime are zero, or endtime is equal to the particle time; " +
			"the kernel will be executed once without incrementing time")
	}
	for i := 0; i < p.Len(); i++ {
		p.SetDT(i, dt)
	}
	dir := sign(dt)

	// A snapshot is written at most once per time.
	lastOutput := math.NaN()
	write := func(t float64) error {
		if cfg.Output == nil || sameTime(t, lastOutput) {
			return nil
		}
		lastOutput = t
		return cfg.Output.Write(p, t)
	}
	if err := write(start); err != nil {
		return err
	}
	if cfg.MovieDT > 0 && cfg.Movie != nil {
		if err := cfg.Movie(ctx, start); err != nil {
			return err
		}
	}

	callbackDT := cfg.CallbackDT
	if callbackDT == 0 {
		callbackDT = math.Inf(1)
		for _, v := range []float64{cfg.MovieDT, cfg.OutputDT, ps.RepeatDT} {
			if v > 0 && v < callbackDT {
				callbackDT = v
			}
		}
	}

	sched := NewEventScheduler(dir, end)
	if !executeOnce {
		var release *Event
		if ps.RepeatDT > 0 {
			rs := *ps.RepeatStart
			n := int(math.Floor(math.Abs(start-rs)/ps.RepeatDT)) + 1
			release = newEventAt("release", rs, n, ps.RepeatDT, dir, ps.release(tel, dt))
		} else {
			release = NewEvent("release", start, 0, dir, nil)
		}
		sched.Add(release)
		sched.Add(NewEvent("output", start, cfg.OutputDT, dir, timed(&tel.IO, func(ctx context.Context, t float64) error {
			return write(t)
		})))
		sched.Add(NewEvent("movie", start, cfg.MovieDT, dir, timed(&tel.Plot, func(ctx context.Context, t float64) error {
			if cfg.Movie == nil {
				return nil
			}
			return cfg.Movie(ctx, t)
		})))
		sched.Add(NewEvent("callback", start, callbackDT, dir, timed(&tel.MemIO, func(ctx context.Context, t float64) error {
			for _, f := range cfg.Callbacks {
				if err := f(ctx, t); err != nil {
					return err
				}
			}
			return nil
		})))
	}

	nextInput := never(dir)
	if ps.FieldSet != nil {
		var err error
		if nextInput, err = ps.FieldSet.ComputeTimeChunk(ctx, start, dir); err != nil {
			return err
		}
	}

	t := start
	for !sched.Done(t) {
		if err := ctx.Err(); err != nil {
			return err
		}
		tel.Total.Start()
		if !executeOnce {
			t = sched.NextStop(nextInput)
		}

		tel.Compute.Start()
		err := cfg.Kernel.Advance(ctx, p, t, dt)
		tel.Compute.Stop()
		if err != nil {
			return fmt.Errorf("drift: executing kernel until time %g: %w", t, err)
		}

		fired, err := sched.Fire(ctx, t)
		if err != nil {
			return err
		}
		tel.NParticles.AdvanceIteration(float64(p.Len()))

		if t != end && ps.FieldSet != nil {
			tel.IO.Start()
			nextInput, err = ps.FieldSet.ComputeTimeChunk(ctx, t, dir)
			tel.IO.Stop()
			if err != nil {
				return err
			}
		}
		tel.Total.Stop()
		if err := tel.recordMemory(); err != nil {
			return err
		}
		tel.advanceIteration()
		log.WithFields(logrus.Fields{
			"time":      t,
			"fired":     fired,
			"particles": p.Len(),
		}).Debug("drift: step")
		if dt == 0 {
			break
		}
	}

	tel.IO.Start()
	err := write(t)
	tel.IO.Stop()
	return err
}

// release returns the handler that adds a new batch of particles.
func (ps *ParticleSet) release(tel *Telemetry, dt float64) func(context.Context, float64) error {
	return timed(&tel.MemIO, func(ctx context.Context, t float64) error {
		n := ps.Particles.Len()
		if err := ps.Particles.Add(ps.IDs, t, ps.RepeatPositions...); err != nil {
			return fmt.Errorf("drift: releasing particles: %w", err)
		}
		for i := n; i < ps.Particles.Len(); i++ {
			ps.Particles.SetDT(i, dt)
		}
		return nil
	})
}

// timed wraps an event handler so that its run time is added to l.
func timed(l *TimingLog, f func(context.Context, float64) error) func(context.Context, float64) error {
	return func(ctx context.Context, t float64) error {
		l.Start()
		defer l.Stop()
		return f(ctx, t)
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
