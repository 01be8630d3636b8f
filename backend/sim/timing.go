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
	"fmt"
	"math"
	"time"
)

// SwingInput is everything the evaluator needs to judge one swing.
type SwingInput struct {
	Pitch          PitchSpec
	Target         TargetLocation
	PCI            Vec2
	TimingOffsetMs float64
	Difficulty     Difficulty
	Batter         BatterProfile
}

// Contact is the evaluator's verdict. It never classifies the outcome;
// ClassifySwing does that.
type Contact struct {
	TimingOffsetMs float64 `json:"timingOffset"`
	TimingLabel    string  `json:"timingLabel"`
	Perfect        bool    `json:"perfect"`
	PCIDistance    float64 `json:"pciDistance"`
	ExitVelocity   float64 `json:"exitVelocity"`
	LaunchAngle    float64 `json:"launchAngle"`
	Effective      Vec2    `json:"effective"`
}

// AbsTimingMs is |TimingOffsetMs|.
func (c Contact) AbsTimingMs() float64 { return math.Abs(c.TimingOffsetMs) }

// TimingOffset returns how early (negative) or late (positive) a swing was
// relative to the pitch reaching the plate, in milliseconds.
func TimingOffset(swingAt, plateArrival, reactionLatency time.Duration) float64 {
	d := swingAt + reactionLatency - plateArrival
	return float64(d) / float64(time.Millisecond)
}

// TimingLabel describes a timing offset for display.
func TimingLabel(offsetMs float64, d Difficulty) string {
	if math.Abs(offsetMs) < TimingPerfectMs*d.Factor() {
		return "PERFECT"
	}
	dir := "EARLY"
	if offsetMs > 0 {
		dir = "LATE"
	}
	return fmt.Sprintf("%dMS %s", int(math.Round(math.Abs(offsetMs))), dir)
}

// TimingExitVelocity maps |offset| onto the piecewise exit velocity curve.
// Offsets at or beyond the last breakpoint return 0: no ball in play.
func TimingExitVelocity(absMs float64, d Difficulty) float64 {
	f := d.Factor()
	prev, top := 0.0, PeakExitVelocity
	for _, b := range evBands {
		limit := b.limitMs * f
		if absMs < limit {
			frac := (absMs - prev) / (limit - prev)
			return top - (top-b.floor)*frac
		}
		prev, top = limit, b.floor
	}
	return 0
}

// EvaluateSwing scores a committed swing. It draws exactly one value from
// rng, for launch angle spread.
func EvaluateSwing(in SwingInput, rng Source) Contact {
	f := in.Difficulty.Factor()
	eff := EffectiveLocation(in.Pitch, in.Target)
	abs := math.Abs(in.TimingOffsetMs)

	pciDist := in.PCI.Dist(eff) * (1 - ContactBonusPerPoint*float64(in.Batter.Contact))
	if pciDist < 0 {
		pciDist = 0
	}
	coverage := math.Min(pciDist/CoverageRadius, 1)

	perfect := abs < TimingPerfectMs*f
	ev := TimingExitVelocity(abs, in.Difficulty)
	if ev > 0 {
		if perfect {
			ev *= 1 + PowerBonusPerPoint*float64(in.Batter.Power)
		}
		ev *= 1 - PCIEVPenalty*coverage
	}

	// Swinging under the ball lifts it.
	vertical := eff.Y - in.PCI.Y
	spread := LaunchSpreadMin + LaunchSpreadMax*coverage
	la := BaseLaunchAngle + LaunchAnglePerMeter*vertical + (rng.Float64()*2-1)*spread
	la = clamp(la, MinLaunchAngle, MaxLaunchAngle)

	return Contact{
		TimingOffsetMs: in.TimingOffsetMs,
		TimingLabel:    TimingLabel(in.TimingOffsetMs, in.Difficulty),
		Perfect:        perfect,
		PCIDistance:    pciDist,
		ExitVelocity:   ev,
		LaunchAngle:    la,
		Effective:      eff,
	}
}

// ClampPCI keeps an aim point inside the reachable area.
func ClampPCI(p Vec2) Vec2 {
	return Vec2{X: clamp(p.X, PCIMinX, PCIMaxX), Y: clamp(p.Y, PCIMinY, PCIMaxY)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
