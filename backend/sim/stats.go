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

// Summary is what a finished game reports to the tournament bracket.
type Summary struct {
	PlayerScore   int  `json:"playerScore"`
	ComputerScore int  `json:"computerScore"`
	Hits          int  `json:"hits"`
	AtBats        int  `json:"atBats"`
	HomeRuns      int  `json:"homeRuns"`
	PlayerWon     bool `json:"playerWon"`
}

// Summarize builds a Summary from the final state and the player's line.
func Summarize(s GameState, line BattingLine) Summary {
	return Summary{
		PlayerScore:   s.Score.Player,
		ComputerScore: s.Score.Computer,
		Hits:          line.Hits,
		AtBats:        line.AtBats,
		HomeRuns:      line.HomeRuns,
		PlayerWon:     s.GameOver && s.Score.Player > s.Score.Computer,
	}
}

// Average is hits per at-bat, or 0 with no at-bats.
func (b BattingLine) Average() float64 {
	if b.AtBats == 0 {
		return 0
	}
	return float64(b.Hits) / float64(b.AtBats)
}
