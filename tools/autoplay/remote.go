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
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/flashcardNFC/fastball/backend"
	"github.com/flashcardNFC/fastball/backend/sim"
	"github.com/gorilla/websocket"
)

// playRemote logs in as user, creates a session and bats through it over
// the session websocket.
func playRemote(base, user string, d sim.Difficulty, tournament bool, bot batterBot) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	resp, err := client.Get(base + "/api/login?user=" + url.QueryEscape(user))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("login: %s (is the server running with --use-mock-auth?)", resp.Status)
	}

	body, _ := json.Marshal(map[string]any{"difficulty": d, "tournament": tournament})
	resp, err = client.Post(base+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create session: %s", resp.Status)
	}
	var session backend.GameSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	log.Printf("Playing session %s (%s)", session.ID, session.Difficulty)

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/api/ws?sessionId=" + session.ID
	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(backend.Message{Type: backend.MsgTypeStart}); err != nil {
		return err
	}

	rng := sim.NewSource(uint64(time.Now().UnixNano()))
	var (
		decided bool
		swing   bool
		lead    time.Duration
	)
	for {
		var msg backend.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch msg.Type {
		case backend.MsgTypeFrame:
			f := msg.Frame
			if f == nil || f.Phase != sim.PhasePitching || !f.State.IsTop || f.Ball == nil || f.Pitch == nil {
				decided = false
				continue
			}
			if !decided {
				decided = true
				swing = rng.Float64() < bot.SwingRate
				lead = time.Duration(gaussian(rng) * bot.ErrorMs * float64(time.Millisecond))
			}
			if !swing {
				continue
			}
			// Swing once the ball is due at the plate, give or take the
			// bot's timing error.
			toPlate := time.Duration(-f.Ball.Z / sim.PitchVelocity(*f.Pitch) * float64(time.Second))
			if toPlate+lead <= 8*time.Millisecond {
				x, y := f.Ball.X, f.Ball.Y
				conn.WriteJSON(backend.Message{Type: backend.MsgTypePCI, X: &x, Y: &y})
				conn.WriteJSON(backend.Message{Type: backend.MsgTypeSwing})
				swing = false
			}
		case backend.MsgTypeOutcome:
			fmt.Println(msg.Play)
		case backend.MsgTypeState:
			if msg.Play != "" {
				fmt.Println(msg.Play)
			}
			if msg.State != nil && !msg.State.IsTop && !msg.State.GameOver {
				conn.WriteJSON(backend.Message{Type: backend.MsgTypeSimulateHalf})
			}
		case backend.MsgTypeGameOver:
			if s := msg.Summary; s != nil {
				fmt.Printf("final: %d-%d, %d for %d, %d HR\n", s.PlayerScore, s.ComputerScore, s.Hits, s.AtBats, s.HomeRuns)
			}
			return nil
		case backend.MsgTypeError:
			log.Printf("server: %s", msg.Error)
		}
	}
}
