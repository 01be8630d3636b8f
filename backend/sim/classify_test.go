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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStrikeEdges(t *testing.T) {
	assert.True(t, IsStrike(Vec2{X: 0.35, Y: 0.6}))
	assert.True(t, IsStrike(Vec2{X: -0.35, Y: 1.6}))
	assert.False(t, IsStrike(Vec2{X: 0.351, Y: 1}))
	assert.False(t, IsStrike(Vec2{X: 0, Y: 0.59}))
	assert.False(t, IsStrike(Vec2{X: 0, Y: 1.61}))
}

func TestClassifyTaken(t *testing.T) {
	o := ClassifyTaken(fastball(), Vec2{X: 0, Y: 1})
	assert.Equal(t, StatusStrike, o.Status)
	assert.Equal(t, OutcomeStrike, o.Type)
	assert.Equal(t, "TAKEN", o.TimingLabel)
	assert.False(t, o.Swung)

	o = ClassifyTaken(fastball(), Vec2{X: 0.5, Y: 1})
	assert.Equal(t, OutcomeBall, o.Type)

	// A slider aimed off the plate breaks back over it.
	slider := PitchSpec{Type: PitchSlider, SpeedMph: 86, Movement: Vec2{X: -0.25}}
	o = ClassifyTaken(slider, Vec2{X: 0.5, Y: 1})
	assert.Equal(t, OutcomeStrike, o.Type)
	assert.InDelta(t, 0.25, o.PitchLocation.X, 1e-9)
}

func proContext(strikes int) SwingContext {
	return SwingContext{
		Pitch:      fastball(),
		Difficulty: Pro,
		Batter:     BatterProfile{Speed: 1, Contact: 2, Power: 2, Handedness: Right},
		Strikes:    strikes,
	}
}

// noDraws fails the test if the classifier consults it.
type noDraws struct{ t *testing.T }

func (n noDraws) Float64() float64 {
	n.t.Fatal("unexpected random draw")
	return 0
}

func TestClassifySwingWhiff(t *testing.T) {
	tests := []struct {
		name string
		dist float64
		d    Difficulty
		miss bool
	}{
		{"far", 0.6, Pro, true},
		{"exactly at threshold", 0.45, Pro, true},
		{"just inside", 0.449, Pro, false},
		{"rookie is more forgiving", 0.6, Rookie, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := proContext(0)
			ctx.Difficulty = tc.d
			c := Contact{PCIDistance: tc.dist, ExitVelocity: 110, LaunchAngle: 25, Perfect: true, TimingLabel: "PERFECT"}
			o := ClassifySwing(c, ctx, &Sequence{Values: []float64{0.99}})
			if tc.miss {
				assert.Equal(t, StatusMiss, o.Status)
				assert.Equal(t, OutcomeStrike, o.Type)
				assert.Equal(t, "WHIFF", o.TimingLabel)
			} else {
				assert.NotEqual(t, "WHIFF", o.TimingLabel)
			}
			require.NoError(t, o.Validate())
		})
	}
}

func TestClassifySwingOutsideTimingBands(t *testing.T) {
	c := Contact{TimingOffsetMs: -100, TimingLabel: "100MS EARLY", PCIDistance: 0.05}

	o := ClassifySwing(c, proContext(0), noDraws{t})
	assert.Equal(t, OutcomeFoul, o.Type)
	assert.False(t, o.HasContact)
	assert.Equal(t, "100MS EARLY", o.TimingLabel)

	o = ClassifySwing(c, proContext(2), noDraws{t})
	assert.Equal(t, OutcomeFoul, o.Type)

	c.TimingOffsetMs = -120
	o = ClassifySwing(c, proContext(2), noDraws{t})
	assert.Equal(t, StatusMiss, o.Status)
	assert.Equal(t, OutcomeStrike, o.Type)

	o = ClassifySwing(c, proContext(1), noDraws{t})
	assert.Equal(t, OutcomeFoul, o.Type)
}

func TestClassifySwingFoulTip(t *testing.T) {
	c := Contact{TimingOffsetMs: 40, PCIDistance: 0.3, ExitVelocity: 100, LaunchAngle: 10}
	o := ClassifySwing(c, proContext(1), noDraws{t})
	assert.Equal(t, OutcomeFoul, o.Type)
	assert.True(t, o.HasContact)
	assert.InDelta(t, 60, o.ExitVelocity, 1e-9)

	c.ExitVelocity = 80
	o = ClassifySwing(c, proContext(1), noDraws{t})
	assert.InDelta(t, FoulEVFloor, o.ExitVelocity, 1e-9)
}

func TestClassifySwingBarrelHomeRun(t *testing.T) {
	c := Contact{TimingLabel: "PERFECT", Perfect: true, ExitVelocity: 110, LaunchAngle: 28}
	o := ClassifySwing(c, proContext(0), noDraws{t})
	assert.Equal(t, StatusHit, o.Status)
	assert.Equal(t, OutcomeHomeRun, o.Type)
	assert.InDelta(t, 442, o.Distance, 1e-9)
	assert.True(t, o.Swung)
}

func TestClassifySwingSolidContact(t *testing.T) {
	tests := []struct {
		name string
		ev   float64
		la   float64
		want OutcomeType
	}{
		{"line drive", 96, 7, OutcomeSingle},
		{"gap shot", 97, 22, OutcomeDouble},
		{"soft liner", 90, 22, OutcomeSingle},
		{"deep drive", 99, 30, OutcomeDouble},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Contact{TimingOffsetMs: 20, PCIDistance: 0.1, ExitVelocity: tc.ev, LaunchAngle: tc.la}
			o := ClassifySwing(c, proContext(0), noDraws{t})
			assert.Equal(t, tc.want, o.Type)
			require.NoError(t, o.Validate())
		})
	}
}

func TestClassifySwingWeakContact(t *testing.T) {
	// Outside the solid band, inside the foul threshold.
	c := Contact{TimingOffsetMs: 50, PCIDistance: 0.23, ExitVelocity: 80, LaunchAngle: 10}

	o := ClassifySwing(c, proContext(0), &Sequence{Values: []float64{0.1}})
	assert.Equal(t, OutcomeSingle, o.Type)

	o = ClassifySwing(c, proContext(0), &Sequence{Values: []float64{0.9}})
	assert.Equal(t, StatusMiss, o.Status)
	assert.Equal(t, OutcomeOut, o.Type)
	assert.True(t, o.HasContact)
}

func TestClassifySwingExtraBases(t *testing.T) {
	c := Contact{TimingOffsetMs: 40, PCIDistance: 0.23, ExitVelocity: 93, LaunchAngle: 20}
	ctx := proContext(0)
	ctx.Batter = BatterProfile{Speed: 5, Handedness: Right}

	rng := &Sequence{Values: []float64{0.01, 0.01}}
	o := ClassifySwing(c, ctx, rng)
	assert.Equal(t, StatusHit, o.Status)
	assert.Equal(t, OutcomeDouble, o.Type)
	// Speed never buys an extra base or an extra draw.
	assert.Equal(t, 1, rng.Draws())

	c.LaunchAngle = 12
	o = ClassifySwing(c, ctx, &Sequence{Values: []float64{0.01}})
	assert.Equal(t, OutcomeSingle, o.Type)
}

func TestClassifySwingForcedHomeRun(t *testing.T) {
	c := Contact{TimingOffsetMs: 25, PCIDistance: 0.23, ExitVelocity: 104, LaunchAngle: 30}
	require.Greater(t, VacuumRangeFt(104, 30), FenceDistanceFt)

	o := ClassifySwing(c, proContext(0), noDraws{t})
	assert.Equal(t, OutcomeHomeRun, o.Type)
	assert.Greater(t, o.Distance, 0.0)
}

func TestHitChanceMonotonic(t *testing.T) {
	b := BatterProfile{Contact: 1}
	prev := 0.0
	for ev := 40.0; ev <= 120; ev += 5 {
		p := HitChance(ev, 15, b)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
	assert.Zero(t, HitChance(110, 55, b))
	assert.Less(t, HitChance(100, 40, b), HitChance(100, 30, b))
}

func TestClassifyPairingHolds(t *testing.T) {
	rng := NewSource(7)
	for i := 0; i < 2000; i++ {
		c := Contact{
			TimingOffsetMs: rng.Float64()*300 - 150,
			PCIDistance:    rng.Float64() * 0.7,
			ExitVelocity:   rng.Float64() * 125,
			LaunchAngle:    rng.Float64()*100 - 20,
		}
		if rng.Float64() < 0.2 {
			c.ExitVelocity = 0
		}
		c.Perfect = c.AbsTimingMs() < TimingPerfectMs
		c.TimingLabel = TimingLabel(c.TimingOffsetMs, Pro)
		o := ClassifySwing(c, proContext(i%3), rng)
		require.NoError(t, o.Validate(), "contact %+v", c)
		require.NotEmpty(t, o.TimingLabel)
	}
}
