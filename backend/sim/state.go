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

import "fmt"

// Score is runs for each side. The player's team always bats in the top
// half (away), the computer in the bottom half (home).
type Score struct {
	Player   int `json:"player"`
	Computer int `json:"computer"`
}

// Bases holds runner occupancy for 1st, 2nd and 3rd.
type Bases [3]bool

// Count returns how many bases are occupied.
func (b Bases) Count() int {
	n := 0
	for _, r := range b {
		if r {
			n++
		}
	}
	return n
}

// GameState is the single mutable aggregate of a game. Only a Reducer may
// produce a new one.
type GameState struct {
	Inning            int        `json:"inning"`
	IsTop             bool       `json:"isTop"`
	Outs              int        `json:"outs"`
	Balls             int        `json:"balls"`
	Strikes           int        `json:"strikes"`
	Score             Score      `json:"score"`
	Runners           Bases      `json:"runners"`
	GameOver          bool       `json:"gameOver"`
	PitcherHandedness Handedness `json:"pitcherHandedness"`
}

// NewGameState returns the state at first pitch.
func NewGameState(rng Source) GameState {
	return GameState{
		Inning:            1,
		IsTop:             true,
		PitcherHandedness: randomHandedness(rng),
	}
}

// Validate checks the invariants that must hold between transitions.
func (s GameState) Validate() error {
	switch {
	case s.Inning < 1:
		return fmt.Errorf("inning %d < 1", s.Inning)
	case s.Balls < 0 || s.Balls > 3:
		return fmt.Errorf("balls %d out of range", s.Balls)
	case s.Strikes < 0 || s.Strikes > 2:
		return fmt.Errorf("strikes %d out of range", s.Strikes)
	case s.Outs < 0 || s.Outs > 2:
		// A finished game may keep its third out.
		return fmt.Errorf("outs %d out of range", s.Outs)
	case s.Score.Player < 0 || s.Score.Computer < 0:
		return fmt.Errorf("negative score %+v", s.Score)
	}
	return nil
}

// Rules configures the reducer.
type Rules struct {
	// FinalInning is the last scheduled inning (3 for a regular game, 9 in
	// a tournament). Tied games continue past it.
	FinalInning int `json:"finalInning"`
	// SingleScoreFromSecond is the chance a runner on 2nd scores on a single.
	SingleScoreFromSecond float64 `json:"singleScoreFromSecond"`
	// SingleFirstToThird is the chance a runner on 1st takes 3rd on a single.
	SingleFirstToThird float64 `json:"singleFirstToThird"`
}

// DefaultRules returns the rules for a regular or tournament game.
func DefaultRules(tournament bool) Rules {
	r := Rules{
		FinalInning:           DefaultRegularGame,
		SingleScoreFromSecond: 0.7,
		SingleFirstToThird:    0.3,
	}
	if tournament {
		r.FinalInning = DefaultTournamentGm
	}
	return r
}

// BattingLine is the batting credit produced by one transition.
type BattingLine struct {
	Hits     int `json:"hits"`
	AtBats   int `json:"atBats"`
	HomeRuns int `json:"homeRuns"`
}

// Add accumulates o into b.
func (b *BattingLine) Add(o BattingLine) {
	b.Hits += o.Hits
	b.AtBats += o.AtBats
	b.HomeRuns += o.HomeRuns
}

// Transition is the full result of applying one outcome.
type Transition struct {
	State      GameState   `json:"state"`
	Runs       int         `json:"runs"`
	AtBatEnded bool        `json:"atBatEnded"`
	SideChange bool        `json:"sideChange"`
	WalkOff    bool        `json:"walkOff"`
	Credit     BattingLine `json:"credit"`
}

// Reducer applies outcomes to game states. Rand is consulted only for
// baserunning on singles and for the next pitcher's handedness.
type Reducer struct {
	Rules Rules
	Rand  Source
}

// Apply returns the state after outcome.
func (r Reducer) Apply(s GameState, o PitchOutcome) GameState {
	return r.Step(s, o).State
}

// Step applies outcome and reports what happened. It panics when the
// outcome violates the status/type pairing; that is a programming error.
func (r Reducer) Step(prev GameState, o PitchOutcome) Transition {
	if err := o.Validate(); err != nil {
		panic(fmt.Sprintf("sim: invalid outcome: %v", err))
	}
	if prev.GameOver {
		return Transition{State: prev}
	}

	s := prev
	t := Transition{}
	runs := 0
	strikeout := false

	switch {
	case o.Type == OutcomeBall:
		s.Balls++
		if s.Balls == 4 {
			s.Runners, runs = AdvanceRunners(s.Runners, OutcomeSingle, r.Rules, r.Rand)
			s.Balls, s.Strikes = 0, 0
			t.AtBatEnded = true
		}
	case o.Type == OutcomeStrike || o.Type == OutcomeFoul:
		if o.Type == OutcomeStrike || s.Strikes < 2 {
			s.Strikes++
		}
		if s.Strikes == 3 {
			s.Outs++
			s.Balls, s.Strikes = 0, 0
			strikeout = true
			t.AtBatEnded = true
		}
	case o.Type == OutcomeOut:
		s.Outs++
		s.Balls, s.Strikes = 0, 0
		t.AtBatEnded = true
	case o.Status == StatusHit:
		s.Runners, runs = AdvanceRunners(s.Runners, o.Type, r.Rules, r.Rand)
		s.Balls, s.Strikes = 0, 0
		t.AtBatEnded = true
		t.Credit.Hits, t.Credit.AtBats = 1, 1
		if o.Type == OutcomeHomeRun {
			t.Credit.HomeRuns = 1
		}
	default:
		panic(fmt.Sprintf("sim: unhandled outcome %s/%s", o.Status, o.Type))
	}
	if o.Type == OutcomeOut || strikeout {
		t.Credit.AtBats = 1
	}
	if !s.IsTop {
		// Only the player's own plate appearances count.
		t.Credit = BattingLine{}
	}

	if s.IsTop {
		s.Score.Player += runs
	} else {
		s.Score.Computer += runs
	}
	t.Runs = runs

	final := r.finalInning()
	if !s.IsTop && s.Inning >= final && s.Score.Computer > s.Score.Player {
		if s.Outs == 3 {
			s.Outs = prev.Outs
		}
		s.Runners = Bases{}
		s.GameOver = true
		t.WalkOff = runs > 0
		t.State = s
		return t
	}

	if s.Outs == 3 {
		regulationOver := s.Inning >= final
		if regulationOver && ((s.IsTop && s.Score.Computer > s.Score.Player) ||
			(!s.IsTop && s.Score.Player != s.Score.Computer)) {
			// The final state keeps the count it ended on.
			s.Outs = prev.Outs
			s.Runners = Bases{}
			s.GameOver = true
			t.State = s
			return t
		}
		s.IsTop = !s.IsTop
		s.Outs, s.Balls, s.Strikes = 0, 0, 0
		s.Runners = Bases{}
		if s.IsTop {
			s.Inning++
		}
		s.PitcherHandedness = randomHandedness(r.Rand)
		t.SideChange = true
	}

	t.State = s
	return t
}

func (r Reducer) finalInning() int {
	if r.Rules.FinalInning < 1 {
		return DefaultRegularGame
	}
	return r.Rules.FinalInning
}

// AdvanceRunners moves runners for a hit of the given type and returns the
// new bases and the runs scored. Singles use the probabilistic
// baserunning in rules; other hits are deterministic.
func AdvanceRunners(b Bases, hit OutcomeType, rules Rules, rng Source) (Bases, int) {
	runs := 0
	switch hit {
	case OutcomeHomeRun:
		return Bases{}, b.Count() + 1
	case OutcomeTriple:
		return Bases{false, false, true}, b.Count()
	case OutcomeDouble:
		if b[2] {
			runs++
			b[2] = false
		}
		if b[1] {
			runs++
			b[1] = false
		}
		if b[0] {
			b[2] = true
			b[0] = false
		}
		b[1] = true
		return b, runs
	case OutcomeSingle:
		if b[2] {
			runs++
			b[2] = false
		}
		if b[1] {
			if rng.Float64() < rules.SingleScoreFromSecond {
				runs++
			} else {
				b[2] = true
			}
			b[1] = false
		}
		if b[0] {
			if rng.Float64() < rules.SingleFirstToThird {
				b[2] = true
			} else {
				b[1] = true
			}
			b[0] = false
		}
		b[0] = true
		return b, runs
	}
	panic(fmt.Sprintf("sim: AdvanceRunners called with %s", hit))
}

// SimulateHalfInning skips the rest of the current half inning, scoring a
// few runs for the batting side based on the opponent's power, and applies
// the same game-end rules as a third out.
func (r Reducer) SimulateHalfInning(s GameState, opponentPower int) Transition {
	if s.GameOver {
		return Transition{State: s}
	}
	runs := int(float64(int(r.Rand.Float64()*2)) + float64(opponentPower)*0.3 + 0.5)
	if s.IsTop {
		s.Score.Player += runs
	} else {
		s.Score.Computer += runs
	}
	s.Outs, s.Balls, s.Strikes = 2, 0, 0
	// Resolve the half exactly as a final out would.
	t := r.Step(s, PitchOutcome{Status: StatusMiss, Type: OutcomeOut})
	t.Runs = runs
	t.Credit = BattingLine{}
	return t
}
