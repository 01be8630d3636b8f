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
	"fmt"
	"math"
	"net/mail"
	"strings"

	"github.com/flashcardNFC/fastball/backend/sim"
	"github.com/google/uuid"
)

var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidMessage = errors.New("invalid message")
)

// isValidUUID checks if the string is a valid UUID in canonical form.
func isValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// ValidateProfile checks a profile submitted by a player. Team skills
// must fit the skill budget before the team may play.
func ValidateProfile(p *Profile) error {
	if p == nil {
		return fmt.Errorf("%w: missing", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.TeamName) == "" {
		return fmt.Errorf("%w: team name required", ErrInvalidProfile)
	}
	if err := validateStringLen(p.TeamName, maxTeamNameLen, "team name"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Team.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

// validateDifficulty maps an optional request value to a Difficulty.
func validateDifficulty(s string) (sim.Difficulty, error) {
	if s == "" {
		return sim.Pro, nil
	}
	d := sim.Difficulty(strings.ToUpper(s))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// validateClientMessage checks a message read from a player's socket.
func validateClientMessage(msg Message) error {
	switch msg.Type {
	case MsgTypeStart, MsgTypeSwing, MsgTypeSimulateHalf, MsgTypePing:
		return nil
	case MsgTypePCI:
		if msg.X == nil || msg.Y == nil {
			return fmt.Errorf("%w: PCI needs x and y", ErrInvalidMessage)
		}
		for _, v := range []float64{*msg.X, *msg.Y} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: PCI coordinate %v", ErrInvalidMessage, v)
			}
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: unknown type %s", ErrInvalidMessage, msg.Type)
	}
}
