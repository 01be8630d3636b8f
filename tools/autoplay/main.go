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

// autoplay plays whole games with a scripted batter, either headless
// against the engine or over the websocket of a running server.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/flashcardNFC/fastball/backend/sim"
)

var (
	seed       = flag.Uint64("seed", 1, "Random seed for the headless game")
	difficulty = flag.String("difficulty", "PRO", "ROOKIE, PRO or MLB")
	tournament = flag.Bool("tournament", false, "Play a full nine innings")
	errorMs    = flag.Float64("error-ms", 25, "Standard deviation of the bot's swing timing (ms)")
	swingRate  = flag.Float64("swing-rate", 0.7, "Probability that the bot swings at a strike")
	server     = flag.String("server", "", "Base URL of a server started with --use-mock-auth; plays headless when empty")
	user       = flag.String("user", "bot@example.com", "Mock user for --server")
	games      = flag.Int("games", 1, "Number of headless games")
	tick       = flag.Duration("tick", 16*time.Millisecond, "Headless tick interval")
)

func main() {
	flag.Parse()

	d := sim.Difficulty(strings.ToUpper(*difficulty))
	if !d.Valid() {
		log.Fatalf("unknown difficulty %q", *difficulty)
	}
	bot := batterBot{ErrorMs: *errorMs, SwingRate: *swingRate}

	if *server != "" {
		if err := playRemote(*server, *user, d, *tournament, bot); err != nil {
			log.Fatalf("autoplay: %v", err)
		}
		return
	}

	var wins int
	for i := 0; i < *games; i++ {
		sum := playLocal(*seed+uint64(i), d, *tournament, bot, *tick, *games == 1)
		if sum.PlayerWon {
			wins++
		}
		fmt.Printf("game %d: %d-%d, %d for %d, %d HR\n", i+1, sum.PlayerScore, sum.ComputerScore, sum.Hits, sum.AtBats, sum.HomeRuns)
	}
	if *games > 1 {
		fmt.Printf("won %d of %d\n", wins, *games)
	}
}

// batterBot decides when and where the scripted player swings.
type batterBot struct {
	ErrorMs   float64
	SwingRate float64
}

// plan returns the swing time for a released pitch, or false to take it.
func (b batterBot) plan(p sim.PitchSpec, target sim.TargetLocation, release time.Duration, rng sim.Source) (time.Duration, sim.Vec2, bool) {
	loc := sim.EffectiveLocation(p, target)
	rate := b.SwingRate
	if !sim.IsStrike(loc) {
		rate *= 0.3
	}
	if rng.Float64() >= rate {
		return 0, sim.Vec2{}, false
	}
	offset := gaussian(rng) * b.ErrorMs
	at := release + sim.FlightTime(p) + time.Duration(offset*float64(time.Millisecond))
	aim := sim.Vec2{X: loc.X + gaussian(rng)*0.03, Y: loc.Y + gaussian(rng)*0.03}
	return at, aim, true
}

// gaussian draws a standard normal value with the Box-Muller transform.
func gaussian(rng sim.Source) float64 {
	u1 := math.Max(rng.Float64(), 1e-12)
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// playLocal runs one game on a virtual clock.
func playLocal(seed uint64, d sim.Difficulty, tournament bool, bot batterBot, step time.Duration, verbose bool) sim.Summary {
	rng := sim.NewSource(seed)
	botRng := sim.NewSource(seed ^ 0x5bd1e995)
	state := sim.NewGameState(rng)
	del := sim.NewDelivery(sim.DeliveryConfig{
		Difficulty: d,
		Batter:     sim.BatterProfile{Speed: 2, Contact: 2, Power: 1, Handedness: sim.Right},
		Opponent:   sim.BatterProfile{Speed: 1, Contact: 2, Power: 2, Handedness: sim.Right},
		Rules:      sim.DefaultRules(tournament),
		AutoPitch:  true,
	}, state, rng)

	var now time.Duration
	del.Start(now)
	var (
		swingAt *time.Duration
		target  sim.TargetLocation
	)
	for {
		now += step
		if swingAt != nil && now >= *swingAt {
			del.Swing(now)
			swingAt = nil
		}
		pre := del.State()
		for _, e := range del.Tick(now) {
			switch e.Kind {
			case sim.EventPitchStarted:
				target = *e.Target
			case sim.EventPitchRelease:
				if !del.PlayerBatting() {
					continue
				}
				at, aim, ok := bot.plan(*e.Pitch, target, e.At, botRng)
				if ok {
					del.SetPCI(aim)
					swingAt = &at
				}
			case sim.EventOutcome:
				if verbose {
					fmt.Println(sim.Describe(pre, *e.Outcome))
				}
			case sim.EventStateChanged:
				if verbose {
					if line := sim.DescribeTransition(*e.Transition); line != "" {
						fmt.Println(line)
					}
				}
			case sim.EventGameOver:
				return *e.Summary
			}
		}
		if now > 6*time.Hour {
			log.Printf("seed %d: game did not finish", seed)
			return del.Summary()
		}
	}
}
