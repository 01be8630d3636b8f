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
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/flashcardNFC/fastball/backend/sim"
)

// CareerStats accumulate across every finished game.
type CareerStats struct {
	Hits           int `json:"hits"`
	AtBats         int `json:"atBats"`
	HomeRuns       int `json:"homeRuns"`
	GamesPlayed    int `json:"gamesPlayed"`
	GamesWon       int `json:"gamesWon"`
	TournamentWins int `json:"tournamentWins"`
}

// Profile is a player's team and career record.
type Profile struct {
	UserID        string            `json:"userId"`
	SchemaVersion int               `json:"schemaVersion"`
	TeamName      string            `json:"teamName"`
	Team          sim.BatterProfile `json:"team"`
	Career        CareerStats       `json:"career"`
	UpdatedAt     int64             `json:"updatedAt"`
}

// DefaultTeam is the team a new player starts with.
func DefaultTeam() sim.BatterProfile {
	return sim.BatterProfile{Speed: 2, Contact: 2, Power: 1, Handedness: sim.Right}
}

// DefaultProfile returns a fresh profile for userID.
func DefaultProfile(userID string) *Profile {
	return &Profile{
		UserID:        userID,
		SchemaVersion: CurrentSchemaVersion,
		TeamName:      "Sluggers",
		Team:          DefaultTeam(),
	}
}

func (p *Profile) normalize() {
	if p.SchemaVersion == 0 {
		p.SchemaVersion = CurrentSchemaVersion
	}
	if p.TeamName == "" {
		p.TeamName = "Sluggers"
	}
	if err := p.Team.Validate(); err != nil {
		log.Printf("[STORE] profile %s: bad team (%v), using defaults", maskEmail(p.UserID), err)
		p.Team = DefaultTeam()
	}
}

// ProfileStore manages profile persistence to disk.
type ProfileStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // *sync.Mutex per user
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(dataDir string, s *storage.Storage) *ProfileStore {
	return &ProfileStore{
		DataDir: dataDir,
		storage: s,
	}
}

func profileFile(userID string) string {
	return filepath.Join("profiles", fmt.Sprintf("%s.json", url.PathEscape(userID)))
}

func (ps *ProfileStore) lock(userID string) *sync.Mutex {
	m, _ := ps.mu.LoadOrStore(userID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// LoadProfile returns the user's profile, or a default one when none has
// been saved. A file that cannot be decoded also yields the default.
func (ps *ProfileStore) LoadProfile(userID string) (*Profile, error) {
	mutex := ps.lock(userID)
	mutex.Lock()
	defer mutex.Unlock()
	return ps.load(userID)
}

func (ps *ProfileStore) load(userID string) (*Profile, error) {
	var p Profile
	if err := ps.storage.ReadDataFile(profileFile(userID), &p); err != nil {
		if os.IsNotExist(err) {
			return DefaultProfile(userID), nil
		}
		log.Printf("[STORE] Warning: unreadable profile for %s, using defaults: %v", maskEmail(userID), err)
		return DefaultProfile(userID), nil
	}
	p.UserID = userID
	p.normalize()
	return &p, nil
}

// SaveProfile replaces the user's team. Career stats are kept from the
// stored profile; only games can change them.
func (ps *ProfileStore) SaveProfile(p *Profile) error {
	if err := ValidateProfile(p); err != nil {
		return err
	}
	mutex := ps.lock(p.UserID)
	mutex.Lock()
	defer mutex.Unlock()

	cur, err := ps.load(p.UserID)
	if err != nil {
		return err
	}
	cur.TeamName = p.TeamName
	cur.Team = p.Team
	return ps.save(cur)
}

func (ps *ProfileStore) save(p *Profile) error {
	p.UpdatedAt = time.Now().UnixNano()
	if err := ps.storage.SaveDataFile(profileFile(p.UserID), p); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// RankedDifficulty is the only difficulty whose games count toward a
// career.
const RankedDifficulty = sim.MLB

// RecordGame folds a finished game into the user's career. A won
// tournament game is the championship and counts as a tournament win.
// Games below RankedDifficulty leave the career untouched.
func (ps *ProfileStore) RecordGame(userID string, sum sim.Summary, d sim.Difficulty, tournament bool) (*Profile, error) {
	mutex := ps.lock(userID)
	mutex.Lock()
	defer mutex.Unlock()

	p, err := ps.load(userID)
	if err != nil {
		return nil, err
	}
	if d != RankedDifficulty {
		return p, nil
	}
	p.Career.Hits += sum.Hits
	p.Career.AtBats += sum.AtBats
	p.Career.HomeRuns += sum.HomeRuns
	p.Career.GamesPlayed++
	if sum.PlayerWon {
		p.Career.GamesWon++
		if tournament {
			p.Career.TournamentWins++
		}
	}
	if err := ps.save(p); err != nil {
		return nil, err
	}
	return p, nil
}
