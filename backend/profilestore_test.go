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
	"errors"
	"os"
	"testing"

	"github.com/c2FmZQ/storage"
	"github.com/flashcardNFC/fastball/backend/sim"
)

func newTestProfileStore(t *testing.T) *ProfileStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "profilestore_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return NewProfileStore(tempDir, storage.New(tempDir, nil))
}

func TestProfileStore(t *testing.T) {
	const user = "player@example.com"

	t.Run("DefaultForNewUser", func(t *testing.T) {
		ps := newTestProfileStore(t)
		p, err := ps.LoadProfile(user)
		if err != nil {
			t.Fatalf("LoadProfile failed: %v", err)
		}
		if p.UserID != user || p.TeamName != "Sluggers" || p.Team != DefaultTeam() {
			t.Errorf("Unexpected default profile: %+v", p)
		}
		if err := p.Team.Validate(); err != nil {
			t.Errorf("Default team should be valid: %v", err)
		}
	})

	t.Run("SaveKeepsCareer", func(t *testing.T) {
		ps := newTestProfileStore(t)
		if _, err := ps.RecordGame(user, sim.Summary{Hits: 2, AtBats: 4, PlayerWon: true, PlayerScore: 3}, sim.MLB, false); err != nil {
			t.Fatalf("RecordGame failed: %v", err)
		}
		team := sim.BatterProfile{Speed: 0, Contact: 0, Power: 5, Handedness: sim.Left}
		err := ps.SaveProfile(&Profile{
			UserID:   user,
			TeamName: "Moonshots",
			Team:     team,
			Career:   CareerStats{Hits: 999},
		})
		if err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}
		p, _ := ps.LoadProfile(user)
		if p.TeamName != "Moonshots" || p.Team != team {
			t.Errorf("Team not saved: %+v", p)
		}
		if p.Career.Hits != 2 || p.Career.GamesPlayed != 1 {
			t.Errorf("Career should come from games only, got %+v", p.Career)
		}
	})

	t.Run("RejectsOverBudget", func(t *testing.T) {
		ps := newTestProfileStore(t)
		err := ps.SaveProfile(&Profile{
			UserID:   user,
			TeamName: "Cheaters",
			Team:     sim.BatterProfile{Speed: 5, Contact: 5, Power: 5, Handedness: sim.Right},
		})
		if !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("Expected ErrInvalidProfile, got %v", err)
		}
	})

	t.Run("RecordGame", func(t *testing.T) {
		ps := newTestProfileStore(t)
		games := []struct {
			sum        sim.Summary
			difficulty sim.Difficulty
			tournament bool
		}{
			{sim.Summary{Hits: 1, AtBats: 3, HomeRuns: 1, PlayerWon: true}, sim.MLB, true},
			{sim.Summary{Hits: 0, AtBats: 4}, sim.MLB, true},
			{sim.Summary{Hits: 2, AtBats: 2, PlayerWon: true}, sim.MLB, false},
			// Only MLB games are ranked.
			{sim.Summary{Hits: 4, AtBats: 4, HomeRuns: 2, PlayerWon: true}, sim.Rookie, true},
			{sim.Summary{Hits: 1, AtBats: 3, PlayerWon: true}, sim.Pro, false},
		}
		var p *Profile
		for _, g := range games {
			var err error
			if p, err = ps.RecordGame(user, g.sum, g.difficulty, g.tournament); err != nil {
				t.Fatalf("RecordGame failed: %v", err)
			}
		}
		want := CareerStats{Hits: 3, AtBats: 9, HomeRuns: 1, GamesPlayed: 3, GamesWon: 2, TournamentWins: 1}
		if p.Career != want {
			t.Errorf("Career = %+v, want %+v", p.Career, want)
		}
		loaded, _ := ps.LoadProfile(user)
		if loaded.Career != want {
			t.Errorf("Stored career = %+v, want %+v", loaded.Career, want)
		}
	})

	t.Run("BadTeamFallsBack", func(t *testing.T) {
		ps := newTestProfileStore(t)
		bad := &Profile{UserID: user, TeamName: "Cheaters", Team: sim.BatterProfile{Speed: 5, Power: 5, Handedness: sim.Right}}
		if err := ps.storage.SaveDataFile(profileFile(user), bad); err != nil {
			t.Fatalf("SaveDataFile failed: %v", err)
		}
		p, err := ps.LoadProfile(user)
		if err != nil {
			t.Fatalf("LoadProfile failed: %v", err)
		}
		if p.Team != DefaultTeam() || p.TeamName != "Cheaters" {
			t.Errorf("Expected default team, got %+v", p)
		}
	})
}
