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

// ReleasePoint is where every pitch leaves the pitcher's hand.
var ReleasePoint = Vec3{X: 0, Y: ReleaseHeight, Z: -MoundToPlate}

// PitchVelocity returns the pitch's depth velocity in m/s.
func PitchVelocity(p PitchSpec) float64 {
	return p.SpeedMph * MphToMs
}

// FlightTime is how long the pitch takes to reach the plate.
func FlightTime(p PitchSpec) time.Duration {
	return time.Duration(flightSeconds(p) * float64(time.Second))
}

func flightSeconds(p PitchSpec) float64 {
	return math.Abs(ReleasePoint.Z) / PitchVelocity(p)
}

// Position returns the ball position elapsedSeconds after release. It is a
// pure function of its arguments; callers may evaluate any tick, including
// past the plate. Before release the ball is pinned to ReleasePoint.
func Position(p PitchSpec, target TargetLocation, elapsedSeconds float64) Vec3 {
	if elapsedSeconds < 0 {
		return ReleasePoint
	}
	v := PitchVelocity(p)
	T := math.Abs(ReleasePoint.Z) / v
	progress := math.Min(elapsedSeconds/T, MaxProgress)

	z := ReleasePoint.Z + v*elapsedSeconds

	breakFactor := progress * progress
	x := lerp(ReleasePoint.X, target.X+p.Movement.X*breakFactor, math.Min(progress, 1))

	finalY := target.Y + p.Movement.Y
	vy0 := (finalY - ReleasePoint.Y - 0.5*Gravity*T*T) / T
	y := ReleasePoint.Y + vy0*elapsedSeconds + 0.5*Gravity*elapsedSeconds*elapsedSeconds

	return Vec3{X: x, Y: y, Z: z}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
