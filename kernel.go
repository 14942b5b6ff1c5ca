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
)

// Kernel moves particles forward (or backward) in time. Advance must
// return only once every particle has reached time until, stepping by
// at most |dt| at a time. When dt is zero the kernel is evaluated once
// without changing particle times.
type Kernel interface {
	Advance(ctx context.Context, p ParticleContainer, until, dt float64) error
}

// KernelFunc adapts a function to the Kernel interface.
type KernelFunc func(ctx context.Context, p ParticleContainer, until, dt float64) error

// Advance implements Kernel.
func (f KernelFunc) Advance(ctx context.Context, p ParticleContainer, until, dt float64) error {
	return f(ctx, p, until, dt)
}

// EulerAdvection advects particles with the velocity fields U, V and,
// optionally, W using the forward Euler method. Velocities are in
// coordinate units per second.
type EulerAdvection struct {
	U, V, W *Field
}

// Advance implements Kernel.
func (k EulerAdvection) Advance(ctx context.Context, p ParticleContainer, until, dt float64) error {
	if k.U == nil || k.V == nil {
		return fmt.Errorf("drift: Euler advection needs U and V fields")
	}
	for i := 0; i < p.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := p.Time(i)
		pos := p.Position(i)
		if dt == 0 {
			if _, err := k.velocity(ctx, t, pos); err != nil {
				return err
			}
			continue
		}
		for (dt > 0 && t < until) || (dt < 0 && t > until) {
			h := dt
			last := false
			if (dt > 0 && t+h >= until) || (dt < 0 && t+h <= until) {
				h = until - t
				last = true
			}
			vel, err := k.velocity(ctx, t, pos)
			if err != nil {
				return err
			}
			pos.Lon += vel.Lon * h
			pos.Lat += vel.Lat * h
			pos.Depth += vel.Depth * h
			if last {
				t = until
			} else {
				t += h
			}
		}
		p.SetTime(i, t)
		p.SetPosition(i, pos)
	}
	return nil
}

func (k EulerAdvection) velocity(ctx context.Context, t float64, pos Position) (Position, error) {
	var v Position
	var err error
	if v.Lon, err = k.U.Sample(ctx, t, pos.Depth, pos.Lat, pos.Lon); err != nil {
		return v, err
	}
	if v.Lat, err = k.V.Sample(ctx, t, pos.Depth, pos.Lat, pos.Lon); err != nil {
		return v, err
	}
	if k.W != nil {
		if v.Depth, err = k.W.Sample(ctx, t, pos.Depth, pos.Lat, pos.Lon); err != nil {
			return v, err
		}
	}
	return v, nil
}
