// Package calendar computes the cells of the day, week and month views of
// the appointment calendar and places entries into them. It is pure: no
// I/O and no clock reads.
package calendar

import (
	"sort"
	"strings"
	"time"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Hourly rows shown in the day and week views, 08:00 through 20:00.
const (
	FirstHour = 8
	LastHour  = 20
	HourRows  = LastHour - FirstHour + 1
)

type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewDay, "dia":
		return ViewDay, nil
	case ViewWeek, "", "semana":
		return ViewWeek, nil
	case ViewMonth, "mes":
		return ViewMonth, nil
	}
	return "", apperr.Validation("invalid view mode %q", s)
}

// Placeable is anything that can be drawn on the calendar.
type Placeable interface {
	CalendarDate() Date
	CalendarStart() Clock
}

// mondayOffset is the position of wd in a Monday-first week (Sunday is 6).
func mondayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// WeekDays returns the Monday-start week containing ref.
func WeekDays(ref Date) []Date {
	monday := ref.AddDays(-mondayOffset(ref.Weekday()))
	days := make([]Date, 7)
	for i := range days {
		days[i] = monday.AddDays(i)
	}
	return days
}

// MonthDays returns whole weeks covering ref's month, starting on the
// Monday on or before the 1st.
func MonthDays(ref Date) []Date {
	first := ref.FirstOfMonth()
	last := ref.LastOfMonth()
	start := first.AddDays(-mondayOffset(first.Weekday()))

	var days []Date
	for d := start; !d.After(last) || len(days)%7 != 0; d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Advance moves ref one view step in direction (+1 or -1).
func Advance(ref Date, mode ViewMode, direction int) Date {
	if direction >= 0 {
		direction = 1
	} else {
		direction = -1
	}
	switch mode {
	case ViewDay:
		return ref.AddDays(direction)
	case ViewMonth:
		return ref.AddMonths(direction)
	default:
		return ref.AddDays(7 * direction)
	}
}

// Range returns the first and last visible day of a view.
func Range(ref Date, mode ViewMode) (Date, Date) {
	days := Days(ref, mode)
	return days[0], days[len(days)-1]
}

// Days returns the ordered cells of a view.
func Days(ref Date, mode ViewMode) []Date {
	switch mode {
	case ViewDay:
		return []Date{ref}
	case ViewMonth:
		return MonthDays(ref)
	default:
		return WeekDays(ref)
	}
}

// SlotFor returns the hourly row of p. ok is false when the start hour is
// outside the grid.
func SlotFor(p Placeable) (hour int, ok bool) {
	start := p.CalendarStart()
	if start.IsZero() {
		return 0, false
	}
	hour = start.Hour()
	return hour, hour >= FirstHour && hour <= LastHour
}

// CellEntries returns the items that fall on day, in input order.
func CellEntries[T Placeable](day Date, items []T) []T {
	var out []T
	for _, it := range items {
		if it.CalendarDate().Equal(day) {
			out = append(out, it)
		}
	}
	return out
}

// Row is one hourly row of a day cell.
type Row[T Placeable] struct {
	Hour    int    `json:"hour"`
	Label   string `json:"label"`
	Entries []T    `json:"entries"`
}

// Cell is one day of a view.
type Cell[T Placeable] struct {
	Date    Date     `json:"date"`
	InMonth bool     `json:"in_month"`
	Entries []T      `json:"entries"`
	Rows    []Row[T] `json:"rows,omitempty"`
}

// Grid is the complete view model of a calendar view.
type Grid[T Placeable] struct {
	Mode      ViewMode  `json:"mode"`
	Reference Date      `json:"reference"`
	Start     Date      `json:"start"`
	End       Date      `json:"end"`
	Previous  Date      `json:"previous"`
	Next      Date      `json:"next"`
	Cells     []Cell[T] `json:"cells"`
	// Unplaced holds entries inside the visible days whose start hour has
	// no row in the day/week grid.
	Unplaced []T `json:"unplaced,omitempty"`
}

// Build lays items out on the view of ref. Entries in each cell and row are
// ordered by start time.
func Build[T Placeable](ref Date, mode ViewMode, items []T) Grid[T] {
	days := Days(ref, mode)
	g := Grid[T]{
		Mode:      mode,
		Reference: ref,
		Start:     days[0],
		End:       days[len(days)-1],
		Previous:  Advance(ref, mode, -1),
		Next:      Advance(ref, mode, 1),
		Cells:     make([]Cell[T], 0, len(days)),
	}

	for _, day := range days {
		entries := CellEntries(day, items)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CalendarStart().Before(entries[j].CalendarStart())
		})
		cell := Cell[T]{
			Date:    day,
			InMonth: day.Month() == ref.Month() && day.Year() == ref.Year(),
			Entries: entries,
		}
		if mode != ViewMonth {
			cell.Rows = make([]Row[T], HourRows)
			for i := range cell.Rows {
				h := FirstHour + i
				cell.Rows[i] = Row[T]{Hour: h, Label: NewClock(h, 0).String()}
			}
			for _, e := range entries {
				hour, ok := SlotFor(e)
				if !ok {
					g.Unplaced = append(g.Unplaced, e)
					continue
				}
				row := &cell.Rows[hour-FirstHour]
				row.Entries = append(row.Entries, e)
			}
		}
		g.Cells = append(g.Cells, cell)
	}
	return g
}
