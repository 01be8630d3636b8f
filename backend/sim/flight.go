// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sim

import (
	"math"
	"time"
)

// FlightState is one batted ball in the air or rolling. It is owned by the
// Delivery for the lifetime of one ball.
type FlightState struct {
	Position  Vec3          `json:"position"`
	Velocity  Vec3          `json:"velocity"`
	StartTime time.Duration `json:"startTime"`
	Elapsed   time.Duration `json:"elapsed"`
	Bounces   int           `json:"bounces"`
	Settled   bool          `json:"settled"`
}

// SettledEvent is emitted once when a batted ball stops.
type SettledEvent struct {
	Position   Vec3          `json:"position"`
	Elapsed    time.Duration `json:"elapsed"`
	DistanceFt float64       `json:"distance"`
	TimedOut   bool          `json:"timedOut"`
}

// SprayAngle returns the horizontal direction of a batted ball in radians.
// A right-handed batter pulls early swings to the left (negative X) and
// pushes late swings to the right; a left-handed batter is mirrored.
func SprayAngle(timingOffsetMs float64, h Handedness) float64 {
	return (timingOffsetMs / 150) * (math.Pi / 3.5) * sideMultiplier(h)
}

func sideMultiplier(h Handedness) float64 {
	if h == Left {
		return -1
	}
	return 1
}

// NewFlight launches the batted ball for an in-play outcome. ok is false
// when the outcome does not put a ball in the air.
func NewFlight(o PitchOutcome, h Handedness, start time.Duration) (s FlightState, ok bool) {
	if !o.InPlay() {
		return FlightState{}, false
	}
	ev, la := o.ExitVelocity, o.LaunchAngle
	if !o.HasContact {
		ev, la = FoulEVFloor, 30
	}

	spray := SprayAngle(o.TimingOffsetMs, h)
	if o.Type == OutcomeFoul {
		side := math.Copysign(1, o.TimingOffsetMs) * sideMultiplier(h)
		spray = side * FoulSprayDeg * math.Pi / 180
	}

	speed := ev * MphToMs
	if o.Type == OutcomeOut && la > 0 {
		// Keep caught fly balls visibly inside the park.
		if r := VacuumRangeFt(ev, la); r >= FlyOutRangeCap*FenceDistanceFt {
			speed *= math.Sqrt(FlyOutRangeTarget * FenceDistanceFt / r)
		}
	}

	rad := la * math.Pi / 180
	return FlightState{
		Position: Vec3{X: 0, Y: ContactHeight, Z: 0},
		Velocity: Vec3{
			X: math.Sin(spray) * speed * math.Cos(rad),
			Y: speed * math.Sin(rad),
			Z: -math.Cos(spray) * speed * math.Cos(rad),
		},
		StartTime: start,
	}, true
}

// Advance integrates one tick. Once settled, further calls are no-ops and
// return no event, so the settle event fires exactly once.
func Advance(s FlightState, dt time.Duration) (FlightState, *SettledEvent) {
	if s.Settled || dt <= 0 {
		return s, nil
	}
	t := dt.Seconds()
	v := s.Velocity

	speed := v.Len()
	v.X -= DragCoefficient * speed * v.X * t
	v.Z -= DragCoefficient * speed * v.Z * t
	v.Y -= DragCoefficient * VerticalDragScale * speed * v.Y * t
	v.Y += Gravity * t

	p := s.Position
	p.X += v.X * t
	p.Y += v.Y * t
	p.Z += v.Z * t
	s.Elapsed += dt

	settled := false
	if p.Y < GroundEpsilon {
		p.Y = GroundEpsilon
		if v.Y < 0 {
			v.Y = -v.Y * Restitution
			v.X *= GroundDamping
			v.Z *= GroundDamping
			s.Bounces++
			settled = math.Abs(v.Y) < SettleSpeed
		}
	}
	s.Position, s.Velocity = p, v

	timedOut := !settled && s.Elapsed >= FlightTimeout
	if !settled && !timedOut {
		return s, nil
	}
	s.Settled = true
	return s, &SettledEvent{
		Position:   p,
		Elapsed:    s.Elapsed,
		DistanceFt: math.Hypot(p.X, p.Z) * MetersToFeet,
		TimedOut:   timedOut,
	}
}
