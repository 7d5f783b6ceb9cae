package deyecloud

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses a zero-padded "HH:MM" string into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM",
// the only form the cloud API accepts.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ClockInWindow reports whether minute t lies in [start, end). Windows
// where end <= start wrap around midnight, so the comparison is modular
// rather than a plain less-than.
func ClockInWindow(t, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return t >= start && t < end
	}
	return t >= start || t < end
}

// PlanSpec describes the inputs for a six-period TOU plan.
type PlanSpec struct {
	WindowStart string
	WindowEnd   string
	// WindowSoC applies to periods inside the discharge window.
	WindowSoC int
	// ReserveSoC applies to all other periods.
	ReserveSoC int
	PowerWatt  int

	FreeEnergyEnabled bool
	FreeEnergyStart   string
	FreeEnergyEnd     string
	// FreeEnergySoC only ever raises the charge target of periods inside
	// the free-energy window.
	FreeEnergySoC int
	// FreeEnergyGridCharge allows charging from the grid during the
	// free-energy window on top of the raised target.
	FreeEnergyGridCharge bool
}

// fillerTimes pad the plan up to six periods when the window boundaries
// collide with each other.
var fillerTimes = []string{"00:00", "06:00", "12:00", "23:00", "03:00", "09:00", "15:00", "21:00"}

// BuildPlan derives the six-period TOU plan the device expects. The
// discharge and free-energy window boundaries always get their own
// periods; remaining slots are padded with fixed anchors and the result
// is sorted by time of day. Boundary times are parsed to minutes up
// front and rendered back through FormatClock, so a non-padded input
// like "5:00" still yields a canonical, chronologically ordered plan.
func BuildPlan(spec PlanSpec) (TOUPlan, error) {
	windowStart, err := ParseClock(spec.WindowStart)
	if err != nil {
		return TOUPlan{}, err
	}
	windowEnd, err := ParseClock(spec.WindowEnd)
	if err != nil {
		return TOUPlan{}, err
	}
	minutes := []int{windowStart, windowEnd}

	var freeStart, freeEnd int
	if spec.FreeEnergyEnabled {
		if freeStart, err = ParseClock(spec.FreeEnergyStart); err != nil {
			return TOUPlan{}, err
		}
		if freeEnd, err = ParseClock(spec.FreeEnergyEnd); err != nil {
			return TOUPlan{}, err
		}
		minutes = append(minutes, freeStart, freeEnd)
	}
	minutes = dedupe(minutes)

	for _, t := range fillerTimes {
		if len(minutes) >= touPeriodCount {
			break
		}
		minute, err := ParseClock(t)
		if err != nil {
			return TOUPlan{}, err
		}
		if !contains(minutes, minute) {
			minutes = append(minutes, minute)
		}
	}
	if len(minutes) != touPeriodCount {
		return TOUPlan{}, fmt.Errorf("cannot build %d-period plan from %d distinct times", touPeriodCount, len(minutes))
	}

	periods := make([]TOUPeriod, 0, touPeriodCount)
	for _, minute := range minutes {
		soc := spec.ReserveSoC
		gridCharge := false
		if ClockInWindow(minute, windowStart, windowEnd) {
			soc = spec.WindowSoC
		}
		if spec.FreeEnergyEnabled && ClockInWindow(minute, freeStart, freeEnd) && spec.FreeEnergySoC > soc {
			soc = spec.FreeEnergySoC
			gridCharge = spec.FreeEnergyGridCharge
		}
		periods = append(periods, TOUPeriod{
			Time:             FormatClock(minute),
			SoC:              soc,
			PowerWatt:        spec.PowerWatt,
			EnableGridCharge: gridCharge,
		})
	}
	sortPeriods(periods)

	var plan TOUPlan
	copy(plan.Periods[:], periods)
	return plan, nil
}

func dedupe(in []int) []int {
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(in []int, v int) bool {
	for _, x := range in {
		if x == v {
			return true
		}
	}
	return false
}
