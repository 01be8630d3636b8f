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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 10 * time.Millisecond

// flyUntilSettled advances s until it settles and returns the final state
// and every settle event seen, including any after the first.
func flyUntilSettled(t *testing.T, s FlightState) (FlightState, []SettledEvent) {
	t.Helper()
	var events []SettledEvent
	for i := 0; i < 2000; i++ {
		var ev *SettledEvent
		s, ev = Advance(s, step)
		if ev != nil {
			events = append(events, *ev)
		}
	}
	require.True(t, s.Settled, "ball never settled")
	return s, events
}

func TestSprayAngle(t *testing.T) {
	assert.Zero(t, SprayAngle(0, Right))
	assert.InDelta(t, math.Pi/3.5, SprayAngle(150, Right), 1e-12)
	assert.InDelta(t, -math.Pi/3.5, SprayAngle(150, Left), 1e-12)
	assert.InDelta(t, -SprayAngle(-40, Right), SprayAngle(-40, Left), 1e-12)
}

func TestNewFlightOnlyInPlay(t *testing.T) {
	_, ok := NewFlight(PitchOutcome{Status: StatusStrike, Type: OutcomeStrike}, Right, 0)
	assert.False(t, ok)
	_, ok = NewFlight(PitchOutcome{Status: StatusBall, Type: OutcomeBall}, Right, 0)
	assert.False(t, ok)
	_, ok = NewFlight(PitchOutcome{Status: StatusMiss, Type: OutcomeStrike}, Right, 0)
	assert.False(t, ok)
}

func TestFlightHomeRunCarries(t *testing.T) {
	o := PitchOutcome{Status: StatusHit, Type: OutcomeHomeRun, HasContact: true, ExitVelocity: 110, LaunchAngle: 28}
	s, ok := NewFlight(o, Right, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, s.StartTime)
	assert.InDelta(t, 0, s.Velocity.X, 1e-9)
	assert.Less(t, s.Velocity.Z, 0.0)

	s, events := flyUntilSettled(t, s)
	require.Len(t, events, 1)
	assert.False(t, events[0].TimedOut)
	assert.Greater(t, events[0].DistanceFt, FenceDistanceFt)
	assert.Positive(t, s.Bounces)
}

func TestFlightGroundBallSettlesQuickly(t *testing.T) {
	o := PitchOutcome{Status: StatusHit, Type: OutcomeSingle, HasContact: true, ExitVelocity: 60, LaunchAngle: -10}
	s, ok := NewFlight(o, Right, 0)
	require.True(t, ok)

	_, events := flyUntilSettled(t, s)
	require.Len(t, events, 1)
	assert.Less(t, events[0].Elapsed, 2*time.Second)
	assert.Less(t, events[0].DistanceFt, 150.0)
}

func TestFlightTimeout(t *testing.T) {
	o := PitchOutcome{Status: StatusHit, Type: OutcomeHomeRun, HasContact: true, ExitVelocity: 120, LaunchAngle: 30}
	s, _ := NewFlight(o, Right, 0)

	_, events := flyUntilSettled(t, s)
	require.Len(t, events, 1)
	assert.True(t, events[0].TimedOut)
	assert.Equal(t, FlightTimeout, events[0].Elapsed)
}

func TestAdvanceNoop(t *testing.T) {
	s := FlightState{Position: Vec3{Y: 1}, Velocity: Vec3{Z: -30}}
	got, ev := Advance(s, 0)
	assert.Equal(t, s, got)
	assert.Nil(t, ev)

	s.Settled = true
	got, ev = Advance(s, step)
	assert.Equal(t, s, got)
	assert.Nil(t, ev)
}

func TestFoulIsSprayedFoul(t *testing.T) {
	late := PitchOutcome{Status: StatusFoul, Type: OutcomeFoul, TimingOffsetMs: 50}
	s, ok := NewFlight(late, Right, 0)
	require.True(t, ok)
	// Without contact the ball leaves at the visual floor.
	assert.InDelta(t, FoulEVFloor*MphToMs, s.Velocity.Len(), 1e-9)
	assert.Greater(t, s.Velocity.X, 0.0)
	assert.Greater(t, math.Abs(s.Velocity.X), 20*math.Abs(s.Velocity.Z))

	s, _ = NewFlight(late, Left, 0)
	assert.Less(t, s.Velocity.X, 0.0)

	early := late
	early.TimingOffsetMs = -50
	s, _ = NewFlight(early, Right, 0)
	assert.Less(t, s.Velocity.X, 0.0)
}

func TestFlyOutStaysInThePark(t *testing.T) {
	o := PitchOutcome{Status: StatusMiss, Type: OutcomeOut, HasContact: true, ExitVelocity: 105, LaunchAngle: 35}
	require.GreaterOrEqual(t, VacuumRangeFt(105, 35), FlyOutRangeCap*FenceDistanceFt)

	s, ok := NewFlight(o, Right, 0)
	require.True(t, ok)
	speedMph := s.Velocity.Len() / MphToMs
	assert.InDelta(t, FlyOutRangeTarget*FenceDistanceFt, VacuumRangeFt(speedMph, 35), 1e-6)

	// Shallow outs are untouched.
	o.ExitVelocity, o.LaunchAngle = 70, 20
	s, _ = NewFlight(o, Right, 0)
	assert.InDelta(t, 70*MphToMs, s.Velocity.Len(), 1e-9)
}
