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

import "math/rand/v2"

// Source is the only way the engine draws random numbers, so that a fixed
// seed reproduces a whole game.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
}

// NewSource returns a deterministic Source for seed.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sequence replays fixed values in order and then repeats the last one.
// Tests use it to force a particular branch.
type Sequence struct {
	Values []float64
	next   int
}

func (s *Sequence) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	if s.next >= len(s.Values) {
		return s.Values[len(s.Values)-1]
	}
	v := s.Values[s.next]
	s.next++
	return v
}

// Draws returns how many values have been consumed.
func (s *Sequence) Draws() int { return s.next }

func randomHandedness(rng Source) Handedness {
	if rng.Float64() > 0.5 {
		return Right
	}
	return Left
}
