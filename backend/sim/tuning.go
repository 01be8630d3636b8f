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

import "time"

// Field geometry (meters unless noted).
const (
	MoundToPlate       = 18.44 // 60.5 feet
	ReleaseHeight      = 1.8
	PlateHalfWidth     = 0.35 // plate plus ball radius, as called
	StrikeZoneBottom   = 0.6
	StrikeZoneTop      = 1.6
	BallRadius         = 0.036
	Gravity            = -9.81
	MphToMs            = 0.44704
	MetersToFeet       = 3.28084
	MaxProgress        = 1.2 // allows overshoot detection past the plate
	ContactWindowDepth = 0.8 // |z| under which a committed swing is judged
	PlateCrossDepth    = 1.3 // z past which an untouched pitch is called
	ContactHeight      = 1.0 // batted balls leave the bat at this height
)

// PCI bounds.
const (
	PCIMinX = -0.8
	PCIMaxX = 0.8
	PCIMinY = 0.2
	PCIMaxY = 2.0
)

// Team creation.
const (
	SkillBudget = 5
	MaxSkill    = 5
)

// Timing curve breakpoints in milliseconds, before difficulty scaling.
const (
	TimingPerfectMs = 12.0
	TimingGreatMs   = 30.0
	TimingGoodMs    = 55.0
	TimingSolidMs   = 90.0
)

// evBand is one segment of the exit velocity curve. Each segment falls
// linearly from the previous segment's floor (PeakExitVelocity for the
// first) to its own floor at limitMs, so the curve never rises as timing
// gets worse.
type evBand struct {
	limitMs float64
	floor   float64
}

// PeakExitVelocity is the exit velocity (mph) of a dead-on swing.
const PeakExitVelocity = 122.0

var evBands = [...]evBand{
	{TimingPerfectMs, 106},
	{TimingGreatMs, 96},
	{TimingGoodMs, 85},
	{TimingSolidMs, 70},
}

// Contact evaluation.
const (
	PowerBonusPerPoint   = 0.02
	ContactBonusPerPoint = 0.06
	CoverageRadius       = 0.4
	PCIEVPenalty         = 0.35
	BaseLaunchAngle      = 12.0
	LaunchAnglePerMeter  = 60.0
	LaunchSpreadMin      = 4.0
	LaunchSpreadMax      = 16.0
	MinLaunchAngle       = -20.0
	MaxLaunchAngle       = 80.0
)

// Classification thresholds.
const (
	MissThreshold     = 0.45 // pci distance, before difficulty scaling
	FoulThreshold     = 0.24
	FoulWindowMs      = 130.0
	FoulWindowTwoKMs  = 110.0
	FoulEVFloor       = 55.0
	BarrelMinEV       = 95.0
	BarrelMinLA       = 18.0
	BarrelMaxLA       = 38.0
	BarrelBand        = 0.12
	HomeRunMinEV      = 102.0
	SolidMinEV        = 88.0
	SolidMinLA        = 6.0
	SolidMaxLA        = 40.0
	SolidBand         = 0.22
	WeakFlyLA         = 40.0
	LineDriveLA       = 8.0
	GapLA             = 20.0
	GapEV             = 95.0
	OptimalLaunch     = 25.0
	FenceDistanceFt   = 400.0
	ForcedHomeRunEV   = 95.0
	ForcedHomeRunLoLA = 18.0
	ForcedHomeRunHiLA = 60.0
)

// Batted ball physics.
const (
	DragCoefficient   = 0.005
	VerticalDragScale = 0.8
	Restitution       = 0.45
	GroundDamping     = 0.8
	GroundEpsilon     = 0.02
	SettleSpeed       = 0.6
	FlightTimeout     = 8 * time.Second
	FoulSprayDeg      = 88.0
	FlyOutRangeCap    = 0.9
	FlyOutRangeTarget = 0.85
)

// Delivery pacing.
const (
	WindupDuration      = 1200 * time.Millisecond
	ResultHold          = 1500 * time.Millisecond
	FoulSettleDelay     = 700 * time.Millisecond
	NextPitchDelay      = 1000 * time.Millisecond
	SideChangeDelay     = 3000 * time.Millisecond
	PitchHistoryLen     = 10
	DefaultRegularGame  = 3
	DefaultTournamentGm = 9
)
