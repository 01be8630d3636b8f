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

func TestTimingOffset(t *testing.T) {
	got := TimingOffset(500*time.Millisecond, 480*time.Millisecond, 10*time.Millisecond)
	assert.InDelta(t, 30, got, 1e-9)
	assert.InDelta(t, -80, TimingOffset(400*time.Millisecond, 480*time.Millisecond, 0), 1e-9)
}

func TestTimingLabel(t *testing.T) {
	tests := []struct {
		offset float64
		d      Difficulty
		want   string
	}{
		{0, Pro, "PERFECT"},
		{-11.9, Pro, "PERFECT"},
		{12, Pro, "12MS LATE"},
		{-40.4, Pro, "40MS EARLY"},
		{15, Rookie, "PERFECT"},
		{10, MLB, "10MS LATE"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TimingLabel(tc.offset, tc.d), "offset %v %s", tc.offset, tc.d)
	}
}

func TestTimingExitVelocityBands(t *testing.T) {
	assert.InDelta(t, PeakExitVelocity, TimingExitVelocity(0, Pro), 1e-9)
	// Each breakpoint lands on the floor of the band it closes.
	assert.InDelta(t, 106, TimingExitVelocity(12, Pro), 1e-9)
	assert.InDelta(t, 96, TimingExitVelocity(30, Pro), 1e-9)
	assert.InDelta(t, 85, TimingExitVelocity(55, Pro), 1e-9)
	assert.InDelta(t, 114, TimingExitVelocity(6, Pro), 1e-9)
	assert.Zero(t, TimingExitVelocity(90, Pro))
	assert.InDelta(t, 70, TimingExitVelocity(89.999, Pro), 0.01)

	// Difficulty only moves the breakpoints.
	assert.Greater(t, TimingExitVelocity(100, Rookie), 0.0)
	assert.Zero(t, TimingExitVelocity(70, MLB))
}

func TestTimingExitVelocityNeverRises(t *testing.T) {
	for _, d := range []Difficulty{Rookie, Pro, MLB} {
		t.Run(string(d), func(t *testing.T) {
			prev := TimingExitVelocity(0, d)
			for ms := 0.1; ms < 150; ms += 0.1 {
				ev := TimingExitVelocity(ms, d)
				if ev > prev+1e-9 {
					t.Fatalf("worse timing %.1fms gives higher EV %.2f > %.2f", ms, ev, prev)
				}
				prev = ev
			}
		})
	}
}

func TestEvaluateSwingPerfectBoundary(t *testing.T) {
	in := centeredSwing()
	in.TimingOffsetMs = 11.9
	inside := EvaluateSwing(in, &Sequence{Values: []float64{0.5}})
	in.TimingOffsetMs = 12
	outside := EvaluateSwing(in, &Sequence{Values: []float64{0.5}})

	assert.True(t, inside.Perfect)
	assert.False(t, outside.Perfect)
	assert.LessOrEqual(t, outside.ExitVelocity, inside.ExitVelocity)
}

func centeredSwing() SwingInput {
	return SwingInput{
		Pitch:      fastball(),
		Target:     Vec2{X: 0, Y: 1.0},
		PCI:        Vec2{X: 0, Y: 1.0},
		Difficulty: Pro,
	}
}

func TestEvaluateSwingCentered(t *testing.T) {
	rng := &Sequence{Values: []float64{0.5}}
	c := EvaluateSwing(centeredSwing(), rng)

	assert.Equal(t, 1, rng.Draws())
	assert.True(t, c.Perfect)
	assert.Equal(t, "PERFECT", c.TimingLabel)
	assert.InDelta(t, 0, c.PCIDistance, 1e-9)
	assert.InDelta(t, 122, c.ExitVelocity, 1e-9)
	assert.InDelta(t, BaseLaunchAngle, c.LaunchAngle, 1e-9)
}

func TestEvaluateSwingPowerOnlyWhenPerfect(t *testing.T) {
	in := centeredSwing()
	in.Batter = BatterProfile{Power: 2, Contact: 2, Speed: 1, Handedness: Right}

	c := EvaluateSwing(in, &Sequence{Values: []float64{0.5}})
	assert.InDelta(t, 122*1.04, c.ExitVelocity, 1e-9)

	in.TimingOffsetMs = 20
	c = EvaluateSwing(in, &Sequence{Values: []float64{0.5}})
	assert.False(t, c.Perfect)
	assert.InDelta(t, TimingExitVelocity(20, Pro), c.ExitVelocity, 1e-9)
}

func TestEvaluateSwingUnderTheBall(t *testing.T) {
	in := centeredSwing()
	in.PCI = Vec2{X: 0, Y: 0.8}

	c := EvaluateSwing(in, &Sequence{Values: []float64{0.5}})
	require.InDelta(t, 0.2, c.PCIDistance, 1e-9)
	assert.InDelta(t, 122*(1-0.35*0.5), c.ExitVelocity, 1e-9)
	assert.InDelta(t, 24, c.LaunchAngle, 1e-9)
}

func TestEvaluateSwingContactShrinksDistance(t *testing.T) {
	in := centeredSwing()
	in.PCI = Vec2{X: 0.2, Y: 1.0}
	in.Batter = BatterProfile{Contact: 5, Handedness: Right}

	c := EvaluateSwing(in, &Sequence{Values: []float64{0.5}})
	assert.InDelta(t, 0.2*0.7, c.PCIDistance, 1e-9)
}

func TestEvaluateSwingLaunchAngleClamped(t *testing.T) {
	in := centeredSwing()
	in.Target = Vec2{X: 0, Y: 1.5}
	in.PCI = Vec2{X: 0, Y: 0.2}
	c := EvaluateSwing(in, &Sequence{Values: []float64{0.999}})
	assert.Equal(t, MaxLaunchAngle, c.LaunchAngle)

	in.Target = Vec2{X: 0, Y: 1.0}
	in.PCI = Vec2{X: 0, Y: 2.0}
	c = EvaluateSwing(in, &Sequence{Values: []float64{0}})
	assert.Equal(t, MinLaunchAngle, c.LaunchAngle)
}

func TestEvaluateSwingUsesBreak(t *testing.T) {
	in := centeredSwing()
	in.Pitch = PitchSpec{Type: PitchCurveball, SpeedMph: 78, Movement: Vec2{X: 0.1, Y: -0.3}}
	in.PCI = Vec2{X: 0.1, Y: 0.7}

	c := EvaluateSwing(in, &Sequence{Values: []float64{0.5}})
	assert.InDelta(t, 0, c.PCIDistance, 1e-9)
	assert.Equal(t, Vec2{X: 0.1, Y: 0.7}, c.Effective)
}

func TestClampPCI(t *testing.T) {
	assert.Equal(t, Vec2{X: PCIMaxX, Y: PCIMinY}, ClampPCI(Vec2{X: 3, Y: -1}))
	assert.Equal(t, Vec2{X: 0.1, Y: 1}, ClampPCI(Vec2{X: 0.1, Y: 1}))
}
