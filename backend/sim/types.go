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

// Package sim is the pitch delivery and at-bat engine: trajectories, swing
// timing, outcome classification, batted-ball flight and the game state
// reducer. It has no I/O; time and randomness are passed in.
package sim

import (
	"fmt"
	"math"
)

// Vec2 is a plate-relative point: X is the horizontal offset from the
// center of the plate, Y the height above the ground (meters).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Dist returns the euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Vec3 is a world-space position or velocity. Z is depth: the release
// point sits at negative Z and home plate at Z=0.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// TargetLocation is the pitcher's aim point at the plate.
type TargetLocation = Vec2

// PitchType enumerates the pitches in the repertoire.
type PitchType string

const (
	PitchFourSeam  PitchType = "4-SEAM"
	PitchSlider    PitchType = "SLIDER"
	PitchCurveball PitchType = "CURVEBALL"
	PitchChangeup  PitchType = "CHANGEUP"
)

// PitchSpec describes a thrown pitch. It is immutable once thrown.
type PitchSpec struct {
	Type     PitchType `json:"type"`
	SpeedMph float64   `json:"speed"`
	Color    string    `json:"color"`
	Movement Vec2      `json:"movement"`
}

// Validate reports whether the pitch can be simulated.
func (p PitchSpec) Validate() error {
	switch p.Type {
	case PitchFourSeam, PitchSlider, PitchCurveball, PitchChangeup:
	default:
		return fmt.Errorf("unknown pitch type %q", p.Type)
	}
	if !(p.SpeedMph > 0) || math.IsInf(p.SpeedMph, 0) {
		return fmt.Errorf("invalid pitch speed %v", p.SpeedMph)
	}
	return nil
}

// EffectiveLocation is where the pitch actually crosses the plate once its
// break has been applied.
func EffectiveLocation(p PitchSpec, target TargetLocation) Vec2 {
	return target.Add(p.Movement)
}

// Handedness of a batter or pitcher.
type Handedness string

const (
	Left  Handedness = "LEFT"
	Right Handedness = "RIGHT"
)

// Valid reports whether h is LEFT or RIGHT.
func (h Handedness) Valid() bool { return h == Left || h == Right }

// Difficulty scales timing windows and AI reaction error.
type Difficulty string

const (
	Rookie Difficulty = "ROOKIE"
	Pro    Difficulty = "PRO"
	MLB    Difficulty = "MLB"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool { return d == Rookie || d == Pro || d == MLB }

// Factor widens (>1) or narrows (<1) every timing and placement window.
func (d Difficulty) Factor() float64 {
	switch d {
	case MLB:
		return 0.75
	case Rookie:
		return 1.5
	default:
		return 1.0
	}
}

// skillFactor is how accurate the AI batter is at this difficulty.
func (d Difficulty) skillFactor() float64 {
	switch d {
	case MLB:
		return 0.9
	case Rookie:
		return 0.4
	default:
		return 0.7
	}
}

// BatterProfile holds a team's batting attributes.
type BatterProfile struct {
	Speed      int        `json:"speed"`
	Contact    int        `json:"contact"`
	Power      int        `json:"power"`
	Handedness Handedness `json:"handedness"`
}

// Validate rejects profiles that may not enter play: each skill must be in
// [0,MaxSkill] and together they must spend exactly SkillBudget points.
func (b BatterProfile) Validate() error {
	for _, s := range []struct {
		name string
		v    int
	}{{"speed", b.Speed}, {"contact", b.Contact}, {"power", b.Power}} {
		if s.v < 0 || s.v > MaxSkill {
			return fmt.Errorf("%s out of range: %d", s.name, s.v)
		}
	}
	if sum := b.Speed + b.Contact + b.Power; sum != SkillBudget {
		return fmt.Errorf("skill points must sum to %d, got %d", SkillBudget, sum)
	}
	if !b.Handedness.Valid() {
		return fmt.Errorf("invalid handedness %q", b.Handedness)
	}
	return nil
}

// OutcomeStatus is the coarse classification of a pitch.
type OutcomeStatus string

const (
	StatusBall   OutcomeStatus = "ball"
	StatusStrike OutcomeStatus = "strike"
	StatusFoul   OutcomeStatus = "foul"
	StatusMiss   OutcomeStatus = "miss"
	StatusHit    OutcomeStatus = "hit"
)

// OutcomeType is the discriminant of a PitchOutcome.
type OutcomeType string

const (
	OutcomeBall    OutcomeType = "BALL"
	OutcomeStrike  OutcomeType = "STRIKE"
	OutcomeFoul    OutcomeType = "FOUL"
	OutcomeOut     OutcomeType = "OUT"
	OutcomeSingle  OutcomeType = "SINGLE"
	OutcomeDouble  OutcomeType = "DOUBLE"
	OutcomeTriple  OutcomeType = "TRIPLE"
	OutcomeHomeRun OutcomeType = "HOMERUN"
)

// IsHit reports whether t puts the batter on base by a hit.
func (t OutcomeType) IsHit() bool {
	switch t {
	case OutcomeSingle, OutcomeDouble, OutcomeTriple, OutcomeHomeRun:
		return true
	}
	return false
}

// PitchOutcome is produced exactly once per pitch. Type is the
// discriminant; the contact fields are only meaningful when HasContact is
// set, and Distance only for home runs.
type PitchOutcome struct {
	ID             string        `json:"id,omitempty"`
	Status         OutcomeStatus `json:"status"`
	Type           OutcomeType   `json:"type"`
	TimingOffsetMs float64       `json:"timingOffset,omitempty"`
	TimingLabel    string        `json:"timingLabel,omitempty"`
	HasContact     bool          `json:"hasContact,omitempty"`
	ExitVelocity   float64       `json:"exitVelocity,omitempty"`
	LaunchAngle    float64       `json:"launchAngle,omitempty"`
	Distance       float64       `json:"distance,omitempty"`
	PitchLocation  Vec2          `json:"pitchLocation"`
	PitchType      PitchType     `json:"pitchType,omitempty"`
	Swung          bool          `json:"swung,omitempty"`
}

// Validate enforces the status/type pairing.
func (o PitchOutcome) Validate() error {
	switch o.Status {
	case StatusHit:
		if !o.Type.IsHit() {
			return fmt.Errorf("status %s with non-hit type %s", o.Status, o.Type)
		}
		return nil
	case StatusBall:
		if o.Type != OutcomeBall {
			return fmt.Errorf("status %s with type %s", o.Status, o.Type)
		}
	case StatusStrike:
		if o.Type != OutcomeStrike {
			return fmt.Errorf("status %s with type %s", o.Status, o.Type)
		}
	case StatusFoul:
		if o.Type != OutcomeFoul {
			return fmt.Errorf("status %s with type %s", o.Status, o.Type)
		}
	case StatusMiss:
		if o.Type != OutcomeStrike && o.Type != OutcomeOut {
			return fmt.Errorf("status %s with type %s", o.Status, o.Type)
		}
	default:
		return fmt.Errorf("unknown status %q", o.Status)
	}
	return nil
}

// InPlay reports whether the outcome produces a batted ball in flight.
func (o PitchOutcome) InPlay() bool {
	return o.Status == StatusHit || o.Type == OutcomeOut || o.Type == OutcomeFoul
}
