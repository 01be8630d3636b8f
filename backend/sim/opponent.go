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

// PitchRecord is one entry of the recent pitch history used for sequencing.
type PitchRecord struct {
	Type     PitchType     `json:"type"`
	Location Vec2          `json:"location"`
	Result   OutcomeStatus `json:"result"`
}

// PitchSelector chooses the next pitch. Implementations must return a
// PitchSpec that passes Validate.
type PitchSelector interface {
	SelectPitch(d Difficulty, s GameState, history []PitchRecord) (PitchSpec, TargetLocation)
}

type repertoireEntry struct {
	pitch    PitchSpec
	minSpeed float64
	maxSpeed float64
	weight   float64
}

var repertoire = []repertoireEntry{
	{PitchSpec{Type: PitchFourSeam, Color: "#ffffff", Movement: Vec2{X: 0, Y: 0.05}}, 92, 99, 0.45},
	{PitchSpec{Type: PitchSlider, Color: "#38bdf8", Movement: Vec2{X: -0.25, Y: -0.05}}, 84, 89, 0.2},
	{PitchSpec{Type: PitchCurveball, Color: "#a78bfa", Movement: Vec2{X: 0.12, Y: -0.35}}, 76, 82, 0.15},
	{PitchSpec{Type: PitchChangeup, Color: "#4ade80", Movement: Vec2{X: 0.08, Y: -0.15}}, 82, 87, 0.2},
}

func speedAdjust(d Difficulty) float64 {
	switch d {
	case Rookie:
		return -6
	case MLB:
		return 2
	}
	return 0
}

// ScriptedPitcher is the computer's pitcher: a weighted repertoire with
// count-aware sequencing and location.
type ScriptedPitcher struct {
	Rand Source
}

// SelectPitch implements PitchSelector.
func (sp ScriptedPitcher) SelectPitch(d Difficulty, s GameState, history []PitchRecord) (PitchSpec, TargetLocation) {
	weights := make([]float64, len(repertoire))
	for i, e := range repertoire {
		w := e.weight
		switch {
		case s.Balls == 3 && e.pitch.Type == PitchFourSeam:
			w *= 2.5
		case s.Strikes == 2 && e.pitch.Type != PitchFourSeam:
			w *= 1.6
		}
		if repeatedTwice(history, e.pitch.Type) {
			w *= 0.2
		}
		weights[i] = w
	}
	e := repertoire[pickWeighted(weights, sp.Rand.Float64())]

	p := e.pitch
	p.SpeedMph = e.minSpeed + (e.maxSpeed-e.minSpeed)*sp.Rand.Float64() + speedAdjust(d)
	if s.PitcherHandedness == Left {
		p.Movement.X = -p.Movement.X
	}

	strikeChance := 0.6
	if s.Balls == 3 {
		strikeChance += 0.25
	}
	if s.Strikes == 2 {
		strikeChance -= 0.15
	}

	var loc Vec2
	if sp.Rand.Float64() < strikeChance {
		loc = Vec2{
			X: -0.3 + 0.6*sp.Rand.Float64(),
			Y: 0.7 + 0.8*sp.Rand.Float64(),
		}
	} else {
		side := 1.0
		if sp.Rand.Float64() < 0.5 {
			side = -1
		}
		if sp.Rand.Float64() < 0.5 {
			loc = Vec2{X: side * (0.45 + 0.25*sp.Rand.Float64()), Y: 0.6 + 1.0*sp.Rand.Float64()}
		} else {
			loc = Vec2{X: -0.3 + 0.6*sp.Rand.Float64(), Y: 0.3 + 0.2*sp.Rand.Float64()}
		}
	}
	// Aim so that the pitch breaks into loc.
	target := Vec2{X: loc.X - p.Movement.X, Y: loc.Y - p.Movement.Y}
	return p, target
}

func repeatedTwice(history []PitchRecord, t PitchType) bool {
	n := len(history)
	return n >= 2 && history[n-1].Type == t && history[n-2].Type == t
}

func pickWeighted(weights []float64, roll float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	x := roll * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}

// AIPlan is what the computer batter will do with one pitch.
type AIPlan struct {
	AimAt   time.Duration `json:"aimAt"`
	Aim     Vec2          `json:"aim"`
	Swing   bool          `json:"swing"`
	SwingAt time.Duration `json:"swingAt"`
}

// AIBatter bats for the computer while the player pitches.
type AIBatter struct {
	Difficulty Difficulty
	Rand       Source
}

// Plan decides aim, timing and whether to offer at a pitch released at
// pitchStart.
func (a AIBatter) Plan(p PitchSpec, target TargetLocation, pitchStart time.Duration) AIPlan {
	skill := a.Difficulty.skillFactor()
	eff := EffectiveLocation(p, target)

	aimDelay := time.Duration((150 + a.Rand.Float64()*200) * float64(time.Millisecond))
	errX := (a.Rand.Float64() - 0.5) * (1 - skill) * 0.8
	errY := (a.Rand.Float64() - 0.5) * (1 - skill) * 0.8
	timingErr := (a.Rand.Float64() - 0.5) * 200 * (1 - skill)

	take := 0.6
	if IsStrike(eff) {
		take = 0.1
	}
	swing := a.Rand.Float64() > take

	swingAt := pitchStart + FlightTime(p) + time.Duration(timingErr*float64(time.Millisecond))
	return AIPlan{
		AimAt:   pitchStart + aimDelay,
		Aim:     ClampPCI(Vec2{X: eff.X + errX, Y: eff.Y + errY}),
		Swing:   swing,
		SwingAt: time.Duration(math.Max(float64(pitchStart), float64(swingAt))),
	}
}
