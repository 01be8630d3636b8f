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

package main

import (
	"testing"
	"time"

	"github.com/flashcardNFC/fastball/backend/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayLocal(t *testing.T) {
	bot := batterBot{ErrorMs: 20, SwingRate: 0.7}
	for _, d := range []sim.Difficulty{sim.Rookie, sim.MLB} {
		t.Run(string(d), func(t *testing.T) {
			sum := playLocal(7, d, false, bot, 16*time.Millisecond, false)
			assert.NotEqual(t, sum.PlayerScore, sum.ComputerScore, "games cannot end tied")
			assert.LessOrEqual(t, sum.Hits, sum.AtBats)
			assert.LessOrEqual(t, sum.HomeRuns, sum.Hits)
			assert.Equal(t, sum.PlayerScore > sum.ComputerScore, sum.PlayerWon)

			again := playLocal(7, d, false, bot, 16*time.Millisecond, false)
			assert.Equal(t, sum, again, "same seed should replay the same game")
		})
	}
}

func TestBatterBotPlan(t *testing.T) {
	p := sim.PitchSpec{Type: sim.PitchFourSeam, SpeedMph: 95}
	target := sim.Vec2{X: 0, Y: 0.8}

	never := batterBot{SwingRate: 0}
	_, _, ok := never.plan(p, target, time.Second, sim.NewSource(1))
	assert.False(t, ok)

	always := batterBot{SwingRate: 1, ErrorMs: 0}
	at, aim, ok := always.plan(p, target, time.Second, &sim.Sequence{Values: []float64{0, 0.5}})
	require.True(t, ok)
	assert.Equal(t, time.Second+sim.FlightTime(p), at)
	assert.InDelta(t, sim.EffectiveLocation(p, target).X, aim.X, 0.2)
}
