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
	"strings"
)

// Describe renders a one-line play-by-play for outcome o thrown in state s
// (the state before the pitch).
func Describe(s GameState, o PitchOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s, %d out, %d-%d: ", half(s.IsTop), ordinal(s.Inning), s.Outs, s.Balls, s.Strikes)

	switch o.Type {
	case OutcomeBall:
		b.WriteString("ball")
	case OutcomeStrike:
		if o.Swung {
			b.WriteString("swinging strike")
		} else {
			b.WriteString("called strike")
		}
	case OutcomeFoul:
		b.WriteString("fouled off")
	case OutcomeOut:
		b.WriteString(outDescription(o.LaunchAngle))
	case OutcomeSingle:
		b.WriteString("single")
	case OutcomeDouble:
		b.WriteString("double")
	case OutcomeTriple:
		b.WriteString("triple")
	case OutcomeHomeRun:
		b.WriteString("home run")
		if o.Distance > 0 {
			fmt.Fprintf(&b, ", %.0f ft", o.Distance)
		}
	default:
		b.WriteString(strings.ToLower(string(o.Type)))
	}
	if o.PitchType != "" {
		fmt.Fprintf(&b, " on a %s", strings.ToLower(string(o.PitchType)))
	}
	if o.HasContact {
		fmt.Fprintf(&b, " (%.1f mph, %.0f deg, %s)", o.ExitVelocity, o.LaunchAngle, o.TimingLabel)
	}
	return b.String()
}

// DescribeTransition summarizes the consequences of one reducer step.
func DescribeTransition(t Transition) string {
	var parts []string
	switch t.Runs {
	case 0:
	case 1:
		parts = append(parts, "1 run scores")
	default:
		parts = append(parts, fmt.Sprintf("%d runs score", t.Runs))
	}
	s := t.State
	switch {
	case s.GameOver && t.WalkOff:
		parts = append(parts, "walk-off")
		fallthrough
	case s.GameOver:
		parts = append(parts, fmt.Sprintf("final %d-%d", s.Score.Player, s.Score.Computer))
	case t.SideChange:
		parts = append(parts, fmt.Sprintf("side retired, %s %s", strings.ToLower(half(s.IsTop)), ordinal(s.Inning)))
	default:
		parts = append(parts, fmt.Sprintf("%d out, %d-%d", s.Outs, s.Balls, s.Strikes))
	}
	return strings.Join(parts, "; ")
}

func outDescription(la float64) string {
	switch {
	case la < 10:
		return "grounded out"
	case la < 25:
		return "lined out"
	case la > 50:
		return "popped out"
	}
	return "flied out"
}

func half(top bool) string {
	if top {
		return "Top"
	}
	return "Bottom"
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
