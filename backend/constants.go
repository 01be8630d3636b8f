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

import "time"

// Schema Versions
const (
	SchemaVersionV1      = 1
	CurrentSchemaVersion = SchemaVersionV1
	CurrentAppVersion    = "0.1.0"
)

// Session status
const (
	SessionStatusActive  = "active"
	SessionStatusFinal   = "final"
	SessionStatusDeleted = "deleted"
)

// Client -> server websocket messages.
const (
	MsgTypeStart        = "START"
	MsgTypeSwing        = "SWING"
	MsgTypePCI          = "PCI"
	MsgTypeSimulateHalf = "SIMULATE_HALF"
	MsgTypePing         = "PING"
)

// Server -> client websocket messages.
const (
	MsgTypePong     = "PONG"
	MsgTypeFrame    = "FRAME"
	MsgTypeContact  = "CONTACT"
	MsgTypeOutcome  = "OUTCOME"
	MsgTypeState    = "STATE"
	MsgTypeGameOver = "GAME_OVER"
	MsgTypeError    = "ERROR"
)

const (
	// DefaultTickInterval is how often a hub advances its delivery.
	DefaultTickInterval = 16 * time.Millisecond
	// idleFrameInterval throttles FRAME messages while nothing moves.
	idleFrameInterval = 250 * time.Millisecond
	// hubIdleTimeout closes a hub with no clients attached.
	hubIdleTimeout = 5 * time.Minute

	maxTeamNameLen = 40
)
