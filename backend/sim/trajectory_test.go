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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastball() PitchSpec {
	return PitchSpec{Type: PitchFourSeam, SpeedMph: 90, Color: "#ffffff"}
}

func TestPositionReleaseAndPlate(t *testing.T) {
	p := PitchSpec{Type: PitchSlider, SpeedMph: 85, Movement: Vec2{X: -0.25, Y: -0.05}}
	target := Vec2{X: 0.2, Y: 1.1}

	start := Position(p, target, 0)
	assert.InDelta(t, ReleasePoint.X, start.X, 1e-9)
	assert.InDelta(t, ReleasePoint.Y, start.Y, 1e-9)
	assert.InDelta(t, ReleasePoint.Z, start.Z, 1e-9)

	plate := Position(p, target, flightSeconds(p))
	assert.InDelta(t, 0, plate.Z, 1e-9)
	assert.InDelta(t, target.X+p.Movement.X, plate.X, 1e-9)
	assert.InDelta(t, target.Y+p.Movement.Y, plate.Y, 1e-9)
}

func TestPositionBeforeRelease(t *testing.T) {
	assert.Equal(t, ReleasePoint, Position(fastball(), Vec2{Y: 1}, -0.25))
}

func TestPositionIsPure(t *testing.T) {
	p := PitchSpec{Type: PitchCurveball, SpeedMph: 78, Movement: Vec2{X: 0.12, Y: -0.35}}
	target := Vec2{X: -0.1, Y: 1.4}
	for _, e := range []float64{0, 0.1, 0.37, 0.6, 2} {
		assert.Equal(t, Position(p, target, e), Position(p, target, e))
	}
}

func TestPositionOvershootStopsBreaking(t *testing.T) {
	p := PitchSpec{Type: PitchSlider, SpeedMph: 85, Movement: Vec2{X: -0.25}}
	target := Vec2{X: 0, Y: 1}
	T := flightSeconds(p)
	a := Position(p, target, T*MaxProgress)
	b := Position(p, target, T*2)
	assert.InDelta(t, a.X, b.X, 1e-9)
	assert.Greater(t, b.Z, a.Z)
}

func TestFlightTime(t *testing.T) {
	got := FlightTime(fastball())
	require.InDelta(t, 458.32, float64(got)/float64(time.Millisecond), 0.01)
	assert.Less(t, FlightTime(PitchSpec{Type: PitchFourSeam, SpeedMph: 99}), got)
}

func TestPitchSpecValidate(t *testing.T) {
	assert.NoError(t, fastball().Validate())
	assert.Error(t, PitchSpec{Type: "KNUCKLE", SpeedMph: 70}.Validate())
	assert.Error(t, PitchSpec{Type: PitchChangeup}.Validate())
}
