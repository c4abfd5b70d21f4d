package fees

import (
	"fmt"
)

// CostBracket maps amounts up to UpTo (inclusive, minor units) to a flat
// gateway cost. Brackets are evaluated in order; the first match wins.
type CostBracket struct {
	UpTo int64
	Cost int64
}

// Schedule is an explicit, versioned fee configuration. Settlements record
// the version they used so historical payouts stay reproducible after a
// schedule change.
type Schedule struct {
	Version                int
	StandardBookingPercent int
	UrgentBookingPercent   int
	ProfessionalPercent    int
	GatewayCostBrackets    []CostBracket
	GatewayCostCeiling     int64
}

// BookingPercent returns the employer-side fee percent for the urgency flag.
func (s Schedule) BookingPercent(urgent bool) int {
	if urgent {
		return s.UrgentBookingPercent
	}
	return s.StandardBookingPercent
}

// GatewayCost resolves the flat provider cost for the given amount. The
// bracket table is total: anything above the top bracket pays the ceiling.
func (s Schedule) GatewayCost(amount int64) int64 {
	for _, bracket := range s.GatewayCostBrackets {
		if amount <= bracket.UpTo {
			return bracket.Cost
		}
	}
	return s.GatewayCostCeiling
}

// Validate checks the schedule is usable: sane percents, bracket bounds
// strictly increasing, and costs monotonic non-decreasing up to the ceiling.
func (s Schedule) Validate() error {
	if s.Version <= 0 {
		return fmt.Errorf("schedule version must be positive")
	}
	for _, pct := range []int{s.StandardBookingPercent, s.UrgentBookingPercent, s.ProfessionalPercent} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("fee percent %d out of range", pct)
		}
	}
	if len(s.GatewayCostBrackets) == 0 {
		return fmt.Errorf("gateway cost brackets are required")
	}
	var prevUpTo int64 = -1
	var prevCost int64 = -1
	for i, bracket := range s.GatewayCostBrackets {
		if bracket.UpTo <= prevUpTo {
			return fmt.Errorf("bracket %d bound %d not increasing", i, bracket.UpTo)
		}
		if bracket.Cost < prevCost {
			return fmt.Errorf("bracket %d cost %d decreases", i, bracket.Cost)
		}
		if bracket.Cost < 0 {
			return fmt.Errorf("bracket %d cost is negative", i)
		}
		prevUpTo = bracket.UpTo
		prevCost = bracket.Cost
	}
	if s.GatewayCostCeiling < prevCost {
		return fmt.Errorf("ceiling %d below top bracket cost %d", s.GatewayCostCeiling, prevCost)
	}
	return nil
}

// scheduleV1 is the launch fee configuration: 15% standard / 20% urgent
// booking fee, 5% professional fee, and the KES mobile-money cost table.
var scheduleV1 = Schedule{
	Version:                1,
	StandardBookingPercent: 15,
	UrgentBookingPercent:   20,
	ProfessionalPercent:    5,
	GatewayCostBrackets: []CostBracket{
		{UpTo: 100, Cost: 0},
		{UpTo: 500, Cost: 7},
		{UpTo: 1000, Cost: 13},
		{UpTo: 1500, Cost: 23},
		{UpTo: 2500, Cost: 33},
		{UpTo: 3500, Cost: 53},
		{UpTo: 5000, Cost: 57},
		{UpTo: 7500, Cost: 78},
		{UpTo: 10000, Cost: 90},
		{UpTo: 15000, Cost: 100},
		{UpTo: 20000, Cost: 105},
	},
	GatewayCostCeiling: 110,
}

var schedulesByVersion = map[int]Schedule{
	1: scheduleV1,
}

// ScheduleForVersion looks up a registered fee schedule.
func ScheduleForVersion(version int) (Schedule, error) {
	schedule, ok := schedulesByVersion[version]
	if !ok {
		return Schedule{}, fmt.Errorf("unknown fee schedule version %d", version)
	}
	return schedule, nil
}

// CurrentSchedule returns the newest registered schedule.
func CurrentSchedule() Schedule {
	best := Schedule{}
	for _, schedule := range schedulesByVersion {
		if schedule.Version > best.Version {
			best = schedule
		}
	}
	return best
}
