package generic

import (
	"fmt"
	"sort"
)

// =============================================================================
// CYCLE WINDOW - Half-open [StartYear, EndYear) range of an entitlement cycle
// =============================================================================

// CycleWindow is a half-open year range. EndYear is exclusive.
//
// Examples (anchor 2013, length 5):
//   - 2013..2017 -> [2013, 2018)
//   - 2025       -> [2023, 2028)
type CycleWindow struct {
	StartYear int
	EndYear   int
}

// Contains returns true if year is within [StartYear, EndYear).
func (w CycleWindow) Contains(year int) bool {
	return w.StartYear <= year && year < w.EndYear
}

// Overlaps returns true if the two half-open windows share at least one year.
func (w CycleWindow) Overlaps(other CycleWindow) bool {
	return w.StartYear < other.EndYear && other.StartYear < w.EndYear
}

func (w CycleWindow) Length() int { return w.EndYear - w.StartYear }

func (w CycleWindow) String() string {
	return fmt.Sprintf("[%d, %d)", w.StartYear, w.EndYear)
}

// =============================================================================
// CYCLE WINDOW CALCULATOR
// =============================================================================

// CycleWindowFor returns the window of length cycleLengthYears, anchored at
// anchorYear, that contains targetYear.
//
// Years before the anchor map to the first cycle. That branch keeps legacy
// behavior and is not reached when the target year is at or after the
// anchor, which is the case for every caller in this repository.
func CycleWindowFor(anchorYear, cycleLengthYears, targetYear int) (CycleWindow, error) {
	if cycleLengthYears < 1 {
		return CycleWindow{}, fmt.Errorf("%w: got %d", ErrInvalidCycleLength, cycleLengthYears)
	}

	if targetYear < anchorYear {
		return CycleWindow{StartYear: anchorYear, EndYear: anchorYear + cycleLengthYears}, nil
	}

	cycleIndex := (targetYear - anchorYear) / cycleLengthYears
	start := anchorYear + cycleIndex*cycleLengthYears
	return CycleWindow{StartYear: start, EndYear: start + cycleLengthYears}, nil
}

// =============================================================================
// LEAVE YEAR CALENDAR - Ordered leave year configurations
// =============================================================================

// LeaveYear is the configuration of one leave year. Year is an opaque label
// ("2024", "FY2024-25"); CutoffStartDate is the eligibility reference date.
type LeaveYear struct {
	Year            string
	CutoffStartDate TimePoint
	CutoffEndDate   TimePoint
}

// LeaveYearCalendar is a chronologically ordered sequence of leave years.
// Leave years are labels, so "the previous year" is the predecessor in this
// ordering, never year-minus-one arithmetic.
type LeaveYearCalendar struct {
	years []LeaveYear
}

// NewLeaveYearCalendar sorts configurations by cutoff start date. Ties are
// broken by label so the order is deterministic.
func NewLeaveYearCalendar(years []LeaveYear) *LeaveYearCalendar {
	sorted := make([]LeaveYear, len(years))
	copy(sorted, years)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CutoffStartDate.Equal(sorted[j].CutoffStartDate) {
			return sorted[i].Year < sorted[j].Year
		}
		return sorted[i].CutoffStartDate.Before(sorted[j].CutoffStartDate)
	})
	return &LeaveYearCalendar{years: sorted}
}

// Years returns the configurations in chronological order.
func (c *LeaveYearCalendar) Years() []LeaveYear {
	out := make([]LeaveYear, len(c.years))
	copy(out, c.years)
	return out
}

func (c *LeaveYearCalendar) Lookup(year string) (LeaveYear, bool) {
	for _, y := range c.years {
		if y.Year == year {
			return y, true
		}
	}
	return LeaveYear{}, false
}

// PredecessorOf returns the leave year immediately before year. The second
// result is false when year is unknown or is the earliest configured year.
func (c *LeaveYearCalendar) PredecessorOf(year string) (LeaveYear, bool) {
	for i, y := range c.years {
		if y.Year == year {
			if i == 0 {
				return LeaveYear{}, false
			}
			return c.years[i-1], true
		}
	}
	return LeaveYear{}, false
}

// Current returns the latest leave year whose cutoff start is on or before
// asOf.
func (c *LeaveYearCalendar) Current(asOf TimePoint) (LeaveYear, bool) {
	var current LeaveYear
	found := false
	for _, y := range c.years {
		if y.CutoffStartDate.After(asOf) {
			break
		}
		current, found = y, true
	}
	return current, found
}
