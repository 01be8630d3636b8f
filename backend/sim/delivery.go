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
	"time"
)

// Phase is the state of the pitch delivery cycle.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseWindup   Phase = "WINDUP"
	PhasePitching Phase = "PITCHING"
	PhaseFlight   Phase = "FLIGHT"
	PhaseResult   Phase = "RESULT"
)

// EventKind identifies what a Delivery event reports.
type EventKind string

const (
	EventPitchStarted EventKind = "PITCH_STARTED"
	EventPitchRelease EventKind = "PITCH_RELEASE"
	EventContact      EventKind = "CONTACT"
	EventOutcome      EventKind = "OUTCOME"
	EventSettled      EventKind = "SETTLED"
	EventStateChanged EventKind = "STATE_CHANGED"
	EventGameOver     EventKind = "GAME_OVER"
)

// Event is emitted by Delivery.Tick and friends. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind       EventKind     `json:"kind"`
	At         time.Duration `json:"at"`
	Pitch      *PitchSpec    `json:"pitch,omitempty"`
	Target     *Vec2         `json:"target,omitempty"`
	Contact    *ContactEvent `json:"contact,omitempty"`
	Outcome    *PitchOutcome `json:"outcome,omitempty"`
	Transition *Transition   `json:"transition,omitempty"`
	Settled    *SettledEvent `json:"settled,omitempty"`
	Summary    *Summary      `json:"summary,omitempty"`
}

// ContactEvent reports a swing as it meets the plate area. Hit is false for
// a whiff; Point is where the ball was when the swing was judged.
type ContactEvent struct {
	Contact
	Hit   bool `json:"hit"`
	Point Vec3 `json:"point"`
}

// Frame is a read-only snapshot for rendering.
type Frame struct {
	At      time.Duration `json:"at"`
	Phase   Phase         `json:"phase"`
	Ball    *Vec3         `json:"ball,omitempty"`
	PCI     Vec2          `json:"pci"`
	Pitch   *PitchSpec    `json:"pitch,omitempty"`
	Swung   bool          `json:"swung"`
	State   GameState     `json:"state"`
	Outcome *PitchOutcome `json:"outcome,omitempty"`
}

// DeliveryConfig configures a Delivery.
type DeliveryConfig struct {
	Difficulty Difficulty
	// Batter is the player's team. Opponent is the computer's.
	Batter   BatterProfile
	Opponent BatterProfile
	Rules    Rules
	// ReactionLatency is added to the player's swing time before judging.
	ReactionLatency time.Duration
	// AutoPitch starts the next pitch on its own after NextPitchDelay
	// (SideChangeDelay after a side change).
	AutoPitch bool
	// Pitcher selects pitches for both halves. Defaults to ScriptedPitcher.
	Pitcher PitchSelector
	// NewID names outcomes. Defaults to a per-delivery counter.
	NewID func() string
}

// Delivery drives one game pitch by pitch. It is not safe for concurrent
// use; a session has exactly one goroutine calling into it. All methods
// take the session clock as an argument and never read wall time.
type Delivery struct {
	cfg     DeliveryConfig
	rng     Source
	reducer Reducer
	ai      AIBatter

	state GameState
	stats BattingLine

	phase      Phase
	phaseStart time.Duration
	idleDelay  time.Duration
	lastTick   time.Duration
	started    bool

	pitch      PitchSpec
	target     TargetLocation
	pitchStart time.Duration
	pci        Vec2
	swingAt    *time.Duration
	plan       *AIPlan
	aimed      bool

	outcome   *PitchOutcome
	resolved  bool
	flight    *FlightState
	foulUntil time.Duration

	history []PitchRecord
	seq     int
}

// NewDelivery returns a Delivery resuming from state. Use NewGameState for
// a fresh game.
func NewDelivery(cfg DeliveryConfig, state GameState, rng Source) *Delivery {
	if cfg.Pitcher == nil {
		cfg.Pitcher = ScriptedPitcher{Rand: rng}
	}
	if !cfg.Difficulty.Valid() {
		cfg.Difficulty = Pro
	}
	if cfg.Rules.FinalInning < 1 {
		cfg.Rules = DefaultRules(false)
	}
	if !cfg.Opponent.Handedness.Valid() {
		cfg.Opponent.Handedness = Right
	}
	if !cfg.Batter.Handedness.Valid() {
		cfg.Batter.Handedness = Right
	}
	d := &Delivery{
		cfg:     cfg,
		rng:     rng,
		reducer: Reducer{Rules: cfg.Rules, Rand: rng},
		ai:      AIBatter{Difficulty: cfg.Difficulty, Rand: rng},
		state:   state,
		phase:   PhaseIdle,
		pci:     Vec2{X: 0, Y: (StrikeZoneBottom + StrikeZoneTop) / 2},
	}
	return d
}

// State returns the current game state.
func (d *Delivery) State() GameState { return d.state }

// Phase returns the current phase.
func (d *Delivery) Phase() Phase { return d.phase }

// Stats returns the player's batting line for this game.
func (d *Delivery) Stats() BattingLine { return d.stats }

// SetStats restores a batting line, e.g. when resuming a saved session.
func (d *Delivery) SetStats(b BattingLine) { d.stats = b }

// History returns a copy of the pitch history of the current at-bat.
func (d *Delivery) History() []PitchRecord {
	return append([]PitchRecord(nil), d.history...)
}

// Summary returns the game summary handed to the bracket on game over.
func (d *Delivery) Summary() Summary { return Summarize(d.state, d.stats) }

// PlayerBatting reports whether the player's team is at bat.
func (d *Delivery) PlayerBatting() bool { return d.state.IsTop }

// Start begins play at now. The first pitch follows after SideChangeDelay
// when AutoPitch is set.
func (d *Delivery) Start(now time.Duration) {
	if d.started {
		return
	}
	d.started = true
	d.enterIdle(now, SideChangeDelay)
	d.lastTick = now
}

// SetAutoPitch turns automatic pitching on or off at now. A pitch already
// under way plays out either way. Turning it back on restarts the wait for
// the next pitch from now.
func (d *Delivery) SetAutoPitch(on bool, now time.Duration) {
	if on == d.cfg.AutoPitch {
		return
	}
	if on && d.phase == PhaseIdle {
		d.phaseStart = now
	}
	d.cfg.AutoPitch = on
}

// AutoPitch reports whether pitches start on their own.
func (d *Delivery) AutoPitch() bool { return d.cfg.AutoPitch }

// Started reports whether Start was called.
func (d *Delivery) Started() bool { return d.started }

// StartPitch begins the windup. It only succeeds from Idle.
func (d *Delivery) StartPitch(now time.Duration) ([]Event, error) {
	if !d.started {
		return nil, fmt.Errorf("game not started")
	}
	if d.state.GameOver {
		return nil, fmt.Errorf("game over")
	}
	if d.phase != PhaseIdle {
		return nil, fmt.Errorf("cannot pitch during %s", d.phase)
	}
	return []Event{d.startPitch(now)}, nil
}

func (d *Delivery) startPitch(now time.Duration) Event {
	p, target := d.cfg.Pitcher.SelectPitch(d.cfg.Difficulty, d.state, d.history)
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("sim: pitch selector returned invalid pitch: %v", err))
	}
	d.pitch, d.target = p, target
	d.swingAt = nil
	d.plan = nil
	d.aimed = false
	d.outcome = nil
	d.resolved = false
	d.flight = nil
	d.setPhase(PhaseWindup, now)
	return Event{Kind: EventPitchStarted, At: now, Pitch: &p, Target: &target}
}

// SetPCI moves the player's aim point. It is ignored while the computer
// bats.
func (d *Delivery) SetPCI(v Vec2) {
	if !d.state.IsTop {
		return
	}
	d.pci = ClampPCI(v)
}

// PCI returns the current aim point.
func (d *Delivery) PCI() Vec2 { return d.pci }

// Swing records the player's swing at now. Only the first swing of a pitch
// counts and only while the ball is on its way.
func (d *Delivery) Swing(now time.Duration) bool {
	if !d.state.IsTop || d.phase != PhasePitching || d.swingAt != nil || d.outcome != nil {
		return false
	}
	at := now
	d.swingAt = &at
	return true
}

// SimulateHalf skips the computer's half inning. It is only allowed from
// Idle while the computer bats.
func (d *Delivery) SimulateHalf(now time.Duration) ([]Event, error) {
	if !d.started || d.state.GameOver {
		return nil, fmt.Errorf("game not in progress")
	}
	if d.state.IsTop || d.phase != PhaseIdle {
		return nil, fmt.Errorf("cannot simulate during %s", d.phase)
	}
	t := d.reducer.SimulateHalfInning(d.state, d.cfg.Opponent.Power)
	d.state = t.State
	d.history = nil
	d.enterIdle(now, SideChangeDelay)
	return d.transitionEvents(now, t), nil
}

// Tick advances the delivery to now and returns what happened. now must
// not go backwards; stale ticks are ignored.
func (d *Delivery) Tick(now time.Duration) []Event {
	if !d.started || d.state.GameOver || now < d.lastTick {
		return nil
	}
	dt := now - d.lastTick
	d.lastTick = now

	var events []Event
	switch d.phase {
	case PhaseIdle:
		if d.cfg.AutoPitch && now-d.phaseStart >= d.idleDelay {
			events = append(events, d.startPitch(now))
		}
	case PhaseWindup:
		if now-d.phaseStart >= WindupDuration {
			d.pitchStart = d.phaseStart + WindupDuration
			d.setPhase(PhasePitching, d.pitchStart)
			if !d.state.IsTop {
				plan := d.ai.Plan(d.pitch, d.target, d.pitchStart)
				d.plan = &plan
			}
			p := d.pitch
			events = append(events, Event{Kind: EventPitchRelease, At: d.pitchStart, Pitch: &p})
			events = append(events, d.tickPitching(now)...)
		}
	case PhasePitching:
		events = append(events, d.tickPitching(now)...)
	case PhaseFlight:
		events = append(events, d.tickFlight(now, dt)...)
	case PhaseResult:
		if now-d.phaseStart >= ResultHold {
			events = append(events, d.resolve(now)...)
		}
	}
	return events
}

func (d *Delivery) tickPitching(now time.Duration) []Event {
	if d.outcome != nil {
		return nil
	}
	if d.plan != nil {
		if !d.aimed && now >= d.plan.AimAt {
			d.pci = d.plan.Aim
			d.aimed = true
		}
		if d.plan.Swing && d.swingAt == nil && now >= d.plan.SwingAt {
			at := d.plan.SwingAt
			d.swingAt = &at
		}
	}

	pos := Position(d.pitch, d.target, (now - d.pitchStart).Seconds())
	switch {
	case d.swingAt != nil && pos.Z > -ContactWindowDepth:
		latency := time.Duration(0)
		if d.state.IsTop {
			latency = d.cfg.ReactionLatency
		}
		batter := d.batter()
		offset := TimingOffset(*d.swingAt, d.pitchStart+FlightTime(d.pitch), latency)
		c := EvaluateSwing(SwingInput{
			Pitch:          d.pitch,
			Target:         d.target,
			PCI:            d.pci,
			TimingOffsetMs: offset,
			Difficulty:     d.cfg.Difficulty,
			Batter:         batter,
		}, d.rng)
		o := ClassifySwing(c, SwingContext{
			Pitch:      d.pitch,
			Difficulty: d.cfg.Difficulty,
			Batter:     batter,
			Strikes:    d.state.Strikes,
		}, d.rng)
		ce := &ContactEvent{Contact: c, Hit: o.HasContact || o.Status == StatusFoul, Point: pos}
		events := []Event{{Kind: EventContact, At: now, Contact: ce}}
		return append(events, d.finish(now, o)...)
	case d.swingAt == nil && pos.Z > PlateCrossDepth:
		return d.finish(now, ClassifyTaken(d.pitch, d.target))
	}
	return nil
}

// finish latches the outcome of the current pitch.
func (d *Delivery) finish(now time.Duration, o PitchOutcome) []Event {
	d.seq++
	if d.cfg.NewID != nil {
		o.ID = d.cfg.NewID()
	} else {
		o.ID = fmt.Sprintf("p%d", d.seq)
	}
	d.outcome = &o

	d.history = append(d.history, PitchRecord{Type: d.pitch.Type, Location: d.target, Result: o.Status})
	if n := len(d.history); n > PitchHistoryLen {
		d.history = d.history[n-PitchHistoryLen:]
	}

	out := o
	events := []Event{{Kind: EventOutcome, At: now, Outcome: &out}}
	if f, ok := NewFlight(o, d.batter().Handedness, now); ok {
		d.flight = &f
		if o.Type == OutcomeFoul {
			d.foulUntil = now + FoulSettleDelay
		}
		d.setPhase(PhaseFlight, now)
		return events
	}
	d.setPhase(PhaseResult, now)
	return events
}

const maxFlightStep = 10 * time.Millisecond

func (d *Delivery) tickFlight(now, dt time.Duration) []Event {
	if d.flight == nil {
		return d.resolve(now)
	}
	var events []Event
	for dt > 0 && !d.flight.Settled {
		step := min(dt, maxFlightStep)
		dt -= step
		f, ev := Advance(*d.flight, step)
		d.flight = &f
		if ev != nil {
			events = append(events, Event{Kind: EventSettled, At: now, Settled: ev})
		}
	}
	if d.flight.Settled || (d.outcome.Type == OutcomeFoul && now >= d.foulUntil) {
		events = append(events, d.resolve(now)...)
	}
	return events
}

// resolve applies the latched outcome exactly once and returns to Idle.
func (d *Delivery) resolve(now time.Duration) []Event {
	if d.outcome == nil || d.resolved {
		return nil
	}
	d.resolved = true
	t := d.reducer.Step(d.state, *d.outcome)
	d.state = t.State
	d.stats.Add(t.Credit)
	if t.AtBatEnded || t.SideChange {
		d.history = nil
	}
	delay := NextPitchDelay
	if t.SideChange {
		delay = SideChangeDelay
	}
	d.enterIdle(now, delay)
	return d.transitionEvents(now, t)
}

func (d *Delivery) transitionEvents(now time.Duration, t Transition) []Event {
	events := []Event{{Kind: EventStateChanged, At: now, Transition: &t}}
	if t.State.GameOver {
		s := d.Summary()
		events = append(events, Event{Kind: EventGameOver, At: now, Summary: &s})
	}
	return events
}

func (d *Delivery) enterIdle(now, delay time.Duration) {
	d.flight = nil
	d.idleDelay = delay
	d.setPhase(PhaseIdle, now)
}

func (d *Delivery) setPhase(p Phase, now time.Duration) {
	d.phase = p
	d.phaseStart = now
}

func (d *Delivery) batter() BatterProfile {
	if d.state.IsTop {
		return d.cfg.Batter
	}
	return d.cfg.Opponent
}

// Frame renders the delivery at now without changing it.
func (d *Delivery) Frame(now time.Duration) Frame {
	f := Frame{
		At:    now,
		Phase: d.phase,
		PCI:   d.pci,
		Swung: d.swingAt != nil,
		State: d.state,
	}
	if d.phase != PhaseIdle {
		p := d.pitch
		f.Pitch = &p
	}
	if d.outcome != nil {
		o := *d.outcome
		f.Outcome = &o
	}
	switch d.phase {
	case PhaseWindup:
		b := ReleasePoint
		f.Ball = &b
	case PhasePitching:
		b := Position(d.pitch, d.target, (now - d.pitchStart).Seconds())
		f.Ball = &b
	case PhaseFlight:
		if d.flight != nil {
			b := d.flight.Position
			f.Ball = &b
		}
	}
	return f
}
