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

import "math"

// IsStrike reports whether a plate location is inside the strike zone.
// The edges belong to the zone.
func IsStrike(loc Vec2) bool {
	return math.Abs(loc.X) <= PlateHalfWidth && loc.Y >= StrikeZoneBottom && loc.Y <= StrikeZoneTop
}

// ClassifyTaken calls a pitch the batter did not swing at.
func ClassifyTaken(p PitchSpec, target TargetLocation) PitchOutcome {
	loc := EffectiveLocation(p, target)
	o := PitchOutcome{
		Status:        StatusBall,
		Type:          OutcomeBall,
		TimingLabel:   "TAKEN",
		PitchLocation: loc,
		PitchType:     p.Type,
	}
	if IsStrike(loc) {
		o.Status, o.Type = StatusStrike, OutcomeStrike
	}
	return o
}

// SwingContext carries the game situation that influences classification.
type SwingContext struct {
	Pitch      PitchSpec
	Difficulty Difficulty
	Batter     BatterProfile
	Strikes    int
}

// ClassifySwing turns an evaluated swing into an outcome. Rules are
// ordered and the first match wins. It draws from rng only on the
// probabilistic branch.
func ClassifySwing(c Contact, ctx SwingContext, rng Source) PitchOutcome {
	f := ctx.Difficulty.Factor()
	abs := c.AbsTimingMs()
	o := PitchOutcome{
		TimingOffsetMs: c.TimingOffsetMs,
		TimingLabel:    c.TimingLabel,
		PitchLocation:  c.Effective,
		PitchType:      ctx.Pitch.Type,
		Swung:          true,
	}

	// 1. Nowhere near it.
	if c.PCIDistance >= MissThreshold*f {
		o.Status, o.Type = StatusMiss, OutcomeStrike
		o.TimingLabel = "WHIFF"
		return o
	}

	// 2. Outside every timing band.
	if c.ExitVelocity == 0 {
		window := FoulWindowMs
		if ctx.Strikes >= 2 {
			window = FoulWindowTwoKMs
		}
		if abs < window*f {
			o.Status, o.Type = StatusFoul, OutcomeFoul
		} else {
			o.Status, o.Type = StatusMiss, OutcomeStrike
		}
		return o
	}

	// 3. Got a piece of it.
	if c.PCIDistance >= FoulThreshold*f && !c.Perfect {
		o.Status, o.Type = StatusFoul, OutcomeFoul
		o.setContact(math.Max(c.ExitVelocity*0.6, FoulEVFloor), c.LaunchAngle)
		return o
	}

	ev, la := c.ExitVelocity, c.LaunchAngle
	o.setContact(ev, la)

	barrelBand := BarrelBand * clamp(1-abs/(TimingSolidMs*f), 0.25, 1)
	barrel := ev >= BarrelMinEV && la >= BarrelMinLA && la <= BarrelMaxLA && c.PCIDistance < barrelBand
	solid := ev >= SolidMinEV && la >= SolidMinLA && la <= SolidMaxLA && c.PCIDistance < SolidBand

	switch {
	case barrel && ev >= HomeRunMinEV:
		o.Status, o.Type = StatusHit, OutcomeHomeRun
		o.Distance = HomeRunDistance(ev, la)
	case barrel || solid:
		switch {
		case la > WeakFlyLA:
			o.Status, o.Type = StatusMiss, OutcomeOut
		case la < LineDriveLA:
			o.Status, o.Type = StatusHit, OutcomeSingle
		case la > GapLA && ev > GapEV:
			o.Status, o.Type = StatusHit, OutcomeDouble
		default:
			o.Status, o.Type = StatusHit, OutcomeSingle
		}
	default:
		if ev > ForcedHomeRunEV && la > ForcedHomeRunLoLA && la < ForcedHomeRunHiLA &&
			VacuumRangeFt(ev, la) > FenceDistanceFt {
			o.Status, o.Type = StatusHit, OutcomeHomeRun
			o.Distance = HomeRunDistance(ev, la)
			return o
		}
		if rng.Float64() < HitChance(ev, la, ctx.Batter) {
			o.Status, o.Type = StatusHit, OutcomeSingle
			if ev >= 92 && la > 15 {
				o.Type = OutcomeDouble
			}
		} else {
			o.Status, o.Type = StatusMiss, OutcomeOut
		}
	}
	return o
}

func (o *PitchOutcome) setContact(ev, la float64) {
	o.HasContact = true
	o.ExitVelocity = ev
	o.LaunchAngle = la
}

// HitChance is the probability that weak or mishit contact falls in. It
// never decreases with exit velocity.
func HitChance(ev, la float64, b BatterProfile) float64 {
	if la > 50 {
		return 0
	}
	var p float64
	switch {
	case ev < 60:
		p = 0.08
	case ev < 70:
		p = 0.15
	case ev < 80:
		p = 0.24
	case ev < 90:
		p = 0.32
	default:
		p = 0.40
	}
	p += 0.02 * float64(b.Contact)
	if la > 35 {
		p *= 0.5
	}
	return p
}

// VacuumRangeFt is the unobstructed range of a projectile launched from the
// ground, ignoring drag.
func VacuumRangeFt(evMph, laDeg float64) float64 {
	v := evMph * MphToMs
	return v * v * math.Sin(2*laDeg*math.Pi/180) / -Gravity * MetersToFeet
}

// HomeRunDistance estimates how far a home run carried, in feet.
func HomeRunDistance(evMph, laDeg float64) float64 {
	return evMph*4.1 - math.Abs(laDeg-OptimalLaunch)*3
}
