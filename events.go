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
	"math"
)

// FireTolerance is the relative time difference within which an event
// is considered to be due at a stop. It is scaled by the magnitude of
// the stop time, so that events landing a few ulps apart far from zero
// still coincide.
const FireTolerance = 1e-12

// tolerance returns the absolute tolerance for comparing times near t.
func tolerance(t float64) float64 {
	return FireTolerance * math.Max(1, math.Abs(t))
}

// sameTime reports whether a and b are the same time within tolerance.
func sameTime(a, b float64) bool {
	return math.Abs(a-b) < tolerance(math.Max(math.Abs(a), math.Abs(b)))
}

// Event is a named recurring timer.
type Event struct {
	Name string

	// Next is the time the event is due next. ±Inf means never.
	Next float64

	// Period is the time between firings. Zero, negative, NaN or
	// infinite periods disable the event.
	Period float64

	// Handler is called when the event fires. It may be nil.
	Handler func(ctx context.Context, t float64) error

	// Next is anchor + n*Period*direction once anchored. Events built
	// as literals are anchored at their first Next when they first fire.
	anchor   float64
	n        int
	anchored bool
}

// NewEvent returns an event with the given period whose first firing is
// one period after start in the given direction. A disabled period gives
// an event that never fires.
func NewEvent(name string, start, period, direction float64, h func(context.Context, float64) error) *Event {
	return newEventAt(name, start, 1, period, direction, h)
}

// newEventAt returns an event whose first firing is n periods after
// anchor in the given direction.
func newEventAt(name string, anchor float64, n int, period, direction float64, h func(context.Context, float64) error) *Event {
	e := &Event{Name: name, Period: period, Handler: h}
	if e.Active() {
		e.anchor, e.n, e.anchored = anchor, n, true
		e.Next = anchor + float64(n)*period*sign(direction)
	} else {
		e.Next = never(direction)
	}
	return e
}

// Active reports whether the event ever fires.
func (e *Event) Active() bool {
	return e.Period > 0 && !math.IsInf(e.Period, 0) && !math.IsNaN(e.Period)
}

// advance moves the event on by one period.
func (e *Event) advance(direction float64) {
	if !e.anchored {
		e.anchor, e.n, e.anchored = e.Next, 0, true
	}
	e.n++
	e.Next = e.anchor + float64(e.n)*e.Period*direction
}

// EventScheduler picks the stop times of a run from a set of events.
type EventScheduler struct {
	// Direction is the sign of the time step.
	Direction float64

	// EndTime bounds every stop.
	EndTime float64

	events []*Event
}

// NewEventScheduler returns a scheduler for a run ending at endTime.
func NewEventScheduler(direction, endTime float64, events ...*Event) *EventScheduler {
	return &EventScheduler{Direction: sign(direction), EndTime: endTime, events: events}
}

// Add adds an event. Events fire in the order they were added.
func (s *EventScheduler) Add(e *Event) { s.events = append(s.events, e) }

// Events returns the scheduled events.
func (s *EventScheduler) Events() []*Event { return s.events }

// NextStop returns the earliest (forward) or latest (backward) of the
// events' next times, the extra candidate times and the end time. A stop
// within tolerance of the end time is the end time. Events within
// tolerance of the returned stop fire there.
func (s *EventScheduler) NextStop(candidates ...float64) float64 {
	t := s.EndTime
	pick := func(v float64) {
		if math.IsNaN(v) {
			return
		}
		if s.Direction < 0 {
			t = math.Max(t, v)
		} else {
			t = math.Min(t, v)
		}
	}
	for _, e := range s.events {
		if e.Active() {
			pick(e.Next)
		}
	}
	for _, c := range candidates {
		pick(c)
	}
	if sameTime(t, s.EndTime) {
		return s.EndTime
	}
	return t
}

// Fire runs the handler of every active event that is due at time t
// and moves it on by one period. It returns the names of the events
// that fired.
func (s *EventScheduler) Fire(ctx context.Context, t float64) ([]string, error) {
	var fired []string
	for _, e := range s.events {
		if !e.Active() || !sameTime(t, e.Next) {
			continue
		}
		if e.Handler != nil {
			if err := e.Handler(ctx, t); err != nil {
				return fired, err
			}
		}
		e.advance(s.Direction)
		fired = append(fired, e.Name)
	}
	return fired, nil
}

// Done reports whether a run at time t has reached the end time.
func (s *EventScheduler) Done(t float64) bool {
	if s.Direction > 0 {
		return t >= s.EndTime
	}
	if s.Direction < 0 {
		return t <= s.EndTime
	}
	return false
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func never(direction float64) float64 {
	if direction < 0 {
		return math.Inf(-1)
	}
	return math.Inf(1)
}
