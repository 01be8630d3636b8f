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

package backend

import (
	"log"
	"strings"
	"time"

	"github.com/flashcardNFC/fastball/backend/search"
	"github.com/flashcardNFC/fastball/backend/sim"
	"github.com/google/uuid"
)

// maxPlays is how many play-by-play lines a session keeps.
const maxPlays = 20

// GameSession is one game between the player's team and the computer, as
// stored on disk. The hub that owns the session is its only writer.
type GameSession struct {
	ID            string            `json:"id"`
	SchemaVersion int               `json:"schemaVersion"`
	OwnerID       string            `json:"ownerId"`
	Status        string            `json:"status"`
	Difficulty    sim.Difficulty    `json:"difficulty"`
	Tournament    bool              `json:"tournament,omitempty"`
	Seed          uint64            `json:"seed"`
	TeamName      string            `json:"teamName,omitempty"`
	Team          sim.BatterProfile `json:"team"`
	Opponent      sim.BatterProfile `json:"opponent"`
	Rules         sim.Rules         `json:"rules"`
	State         sim.GameState     `json:"state"`
	Stats         sim.BattingLine   `json:"stats"`
	Pitches       int               `json:"pitches"`
	Plays         []string          `json:"plays,omitempty"`
	Summary       *sim.Summary      `json:"summary,omitempty"`
	CreatedAt     int64             `json:"createdAt"`
	UpdatedAt     int64             `json:"updatedAt"`

	// DeletedAt is the timestamp (Unix Nano) when the session was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`

	// LastRaftIndex is the journal index of the last save applied to this
	// session. Replayed entries at or below it are skipped.
	LastRaftIndex uint64 `json:"lastRaftIndex,omitempty"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	TeamName   string         `json:"teamName,omitempty"`
	Difficulty sim.Difficulty `json:"difficulty"`
	Tournament bool           `json:"tournament,omitempty"`
	Inning     int            `json:"inning"`
	IsTop      bool           `json:"isTop"`
	Score      sim.Score      `json:"score"`
	UpdatedAt  int64          `json:"updatedAt"`
}

// NewGameSession starts a fresh game for owner. The computer's team is
// drawn from seed.
func NewGameSession(owner, teamName string, team sim.BatterProfile, d sim.Difficulty, tournament bool, seed uint64) *GameSession {
	rng := sim.NewSource(seed)
	now := time.Now().UnixNano()
	s := &GameSession{
		ID:            uuid.NewString(),
		SchemaVersion: CurrentSchemaVersion,
		OwnerID:       owner,
		Status:        SessionStatusActive,
		Difficulty:    d,
		Tournament:    tournament,
		Seed:          seed,
		TeamName:      teamName,
		Team:          team,
		Opponent:      randomOpponent(rng),
		Rules:         sim.DefaultRules(tournament),
		State:         sim.NewGameState(rng),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.normalize()
	return s
}

// randomOpponent spreads the skill budget over the three skills.
func randomOpponent(rng sim.Source) sim.BatterProfile {
	var pts [3]int
	for n := 0; n < sim.SkillBudget; n++ {
		pts[int(rng.Float64()*3)%3]++
	}
	h := sim.Right
	if rng.Float64() < 0.3 {
		h = sim.Left
	}
	return sim.BatterProfile{Speed: pts[0], Contact: pts[1], Power: pts[2], Handedness: h}
}

// normalize fills in defaults and replaces anything that does not
// validate, so a damaged file still loads as a playable session.
func (s *GameSession) normalize() {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = CurrentSchemaVersion
	}
	if s.Status == "" {
		s.Status = SessionStatusActive
	}
	if s.Status == SessionStatusDeleted {
		return
	}
	if !s.Difficulty.Valid() {
		log.Printf("[STORE] session %s: unknown difficulty %q, using %s", s.ID, s.Difficulty, sim.Pro)
		s.Difficulty = sim.Pro
	}
	if s.Rules.FinalInning < 1 {
		s.Rules = sim.DefaultRules(s.Tournament)
	}
	if err := s.Team.Validate(); err != nil {
		log.Printf("[STORE] session %s: bad team (%v), using defaults", s.ID, err)
		s.Team = DefaultTeam()
	}
	if err := s.Opponent.Validate(); err != nil {
		log.Printf("[STORE] session %s: bad opponent (%v), using defaults", s.ID, err)
		s.Opponent = DefaultTeam()
	}
	if err := s.State.Validate(); err != nil || !s.State.PitcherHandedness.Valid() {
		log.Printf("[STORE] session %s: bad game state (%v), restarting game", s.ID, err)
		s.State = sim.NewGameState(sim.NewSource(s.Seed))
		s.Stats = sim.BattingLine{}
		s.Summary = nil
		s.Status = SessionStatusActive
	}
	if s.State.GameOver {
		s.Status = SessionStatusFinal
	}
}

// Summarize returns the listing view.
func (s *GameSession) Summarize() SessionSummary {
	return SessionSummary{
		ID:         s.ID,
		Status:     s.Status,
		TeamName:   s.TeamName,
		Difficulty: s.Difficulty,
		Tournament: s.Tournament,
		Inning:     s.State.Inning,
		IsTop:      s.State.IsTop,
		Score:      s.State.Score,
		UpdatedAt:  s.UpdatedAt,
	}
}

// DeliveryOptions are the server-wide knobs for running a session.
type DeliveryOptions struct {
	ReactionLatency time.Duration
	AutoPitch       bool
}

// NewDelivery resumes the session at the start of the next pitch. The
// random stream is keyed by the pitch count so a resumed game does not
// replay draws already used.
func (s *GameSession) NewDelivery(opts DeliveryOptions) *sim.Delivery {
	rng := sim.NewSource(s.Seed + uint64(s.Pitches)*0x9e3779b97f4a7c15)
	d := sim.NewDelivery(sim.DeliveryConfig{
		Difficulty:      s.Difficulty,
		Batter:          s.Team,
		Opponent:        s.Opponent,
		Rules:           s.Rules,
		ReactionLatency: opts.ReactionLatency,
		AutoPitch:       opts.AutoPitch,
		NewID:           uuid.NewString,
	}, s.State, rng)
	d.SetStats(s.Stats)
	return d
}

// Record copies the delivery's settled state into the session.
func (s *GameSession) Record(d *sim.Delivery) {
	s.State = d.State()
	s.Stats = d.Stats()
	s.UpdatedAt = time.Now().UnixNano()
	if s.State.GameOver {
		sum := d.Summary()
		s.Summary = &sum
		s.Status = SessionStatusFinal
	}
}

// AddPlay appends a play-by-play line, keeping the most recent ones.
func (s *GameSession) AddPlay(line string) {
	s.Pitches++
	s.Plays = append(s.Plays, line)
	if len(s.Plays) > maxPlays {
		s.Plays = append([]string(nil), s.Plays[len(s.Plays)-maxPlays:]...)
	}
}

// Matches reports whether the summary satisfies every filter of q. Free
// text matches the team name or an id prefix.
func (s SessionSummary) Matches(q search.Query) bool {
	for _, f := range q.Filters {
		var ok bool
		switch f.Key {
		case "status":
			ok = f.MatchString(s.Status)
		case "difficulty":
			ok = f.MatchString(string(s.Difficulty))
		case "tournament":
			ok = f.MatchBool(s.Tournament)
		case "inning":
			ok = f.MatchInt(s.Inning)
		case "runs":
			ok = f.MatchInt(s.Score.Player)
		case "against":
			ok = f.MatchInt(s.Score.Computer)
		case "team":
			ok = f.MatchString(s.TeamName)
		}
		if !ok {
			return false
		}
	}
	for _, text := range q.FreeText {
		text = strings.ToLower(text)
		if !strings.Contains(strings.ToLower(s.TeamName), text) && !strings.HasPrefix(s.ID, text) {
			return false
		}
	}
	return true
}
