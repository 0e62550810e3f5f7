package models

import "time"

// Choice is the set of selected values for one dimension.
// A nil Choice leaves the dimension unconstrained; a non-nil empty Choice matches no record.
type Choice []string

// All returns a Choice that does not constrain its dimension.
func All() Choice { return nil }

// None returns a Choice that excludes every record.
func None() Choice { return Choice{} }

func (c Choice) Constrained() bool { return c != nil }

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: Day(from), To: Day(to)}
}

func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Inverted reports whether From falls after To.
func (r DateRange) Inverted() bool { return r.From.After(r.To) }

// Days is the inclusive number of calendar days covered by the range.
func (r DateRange) Days() int {
	if r.Inverted() {
		return 0
	}
	return int(Day(r.To).Sub(Day(r.From)).Hours()/24) + 1
}

// Contains reports whether t's calendar date lies within the range. Time of day is ignored.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.From)) && !d.After(Day(r.To))
}

// FilterSelection is the immutable set of user choices for one recompute.
type FilterSelection struct {
	Regions       Choice    `json:"regions"`
	States        Choice    `json:"states"`
	Categories    Choice    `json:"categories"`
	SubCategories Choice    `json:"sub_categories"`
	Range         DateRange `json:"range"`
}

// Choice returns the selection for a cascading column.
func (s FilterSelection) Choice(c Column) Choice {
	switch c {
	case ColumnRegion:
		return s.Regions
	case ColumnState:
		return s.States
	case ColumnCategory:
		return s.Categories
	case ColumnSubCategory:
		return s.SubCategories
	default:
		return nil
	}
}
