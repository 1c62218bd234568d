// Package layout packs a day's events into non-overlapping screen
// rectangles. Events whose times overlap are assigned side-by-side columns;
// the vertical axis maps minutes of the day to percentages of the window.
//
// Compute is pure: the same events and window always produce the same boxes.
package layout

import (
	"sort"
	"time"
)

type Event struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Box is a rectangle in percent units relative to the day column.
type Box struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

type Positioned struct {
	Event Event
	Box   Box
}

// Events shorter than this still render at this height so they stay visible.
const minVisibleMinutes = 30.0

// Compute assigns each event a rectangle within the [dayStart, dayEnd)
// window. Events are clamped to the window before any minute math, then
// partitioned into maximal runs of overlapping events; within a run each
// event takes the lowest column not occupied by a still-active neighbour.
func Compute(events []Event, dayStart, dayEnd time.Time) []Positioned {
	windowMinutes := dayEnd.Sub(dayStart).Minutes()
	if len(events) == 0 || windowMinutes <= 0 {
		return nil
	}

	sorted := make([]span, 0, len(events))
	for _, ev := range events {
		sorted = append(sorted, clamp(ev, dayStart, dayEnd))
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start.Before(sorted[j].start)
	})

	var out []Positioned
	var run []span
	var runEnd time.Time
	for _, s := range sorted {
		if len(run) > 0 && !s.start.Before(runEnd) {
			out = append(out, packRun(run, dayStart, windowMinutes)...)
			run = run[:0]
		}
		if len(run) == 0 || s.end.After(runEnd) {
			runEnd = s.end
		}
		run = append(run, s)
	}
	out = append(out, packRun(run, dayStart, windowMinutes)...)
	return out
}

// span is an event clamped to the visible window.
type span struct {
	ev         Event
	start, end time.Time
}

func clamp(ev Event, dayStart, dayEnd time.Time) span {
	s, e := ev.Start, ev.End
	if s.Before(dayStart) {
		s = dayStart
	}
	if e.After(dayEnd) {
		e = dayEnd
	}
	if e.Before(s) {
		e = s
	}
	return span{ev: ev, start: s, end: e}
}

// packRun sweeps one run of mutually overlapping events in start order,
// assigning the lowest free column after evicting spans that ended before
// the current one starts. Column count is shared by the whole run.
func packRun(run []span, dayStart time.Time, windowMinutes float64) []Positioned {
	if len(run) == 0 {
		return nil
	}

	type slot struct {
		end time.Time
		col int
	}
	var active []slot
	cols := make([]int, len(run))
	maxCol := 0

	for i, s := range run {
		n := 0
		for _, a := range active {
			if a.end.After(s.start) {
				active[n] = a
				n++
			}
		}
		active = active[:n]

		col := 0
		for taken := true; taken; {
			taken = false
			for _, a := range active {
				if a.col == col {
					taken = true
					col++
					break
				}
			}
		}
		active = append(active, slot{end: s.end, col: col})
		cols[i] = col
		if col > maxCol {
			maxCol = col
		}
	}

	total := float64(maxCol + 1)
	out := make([]Positioned, 0, len(run))
	for i, s := range run {
		startMin := s.start.Sub(dayStart).Minutes()
		dur := s.end.Sub(s.start).Minutes()
		if dur < minVisibleMinutes {
			dur = minVisibleMinutes
		}
		out = append(out, Positioned{
			Event: s.ev,
			Box: Box{
				Top:    startMin / windowMinutes * 100,
				Height: dur / windowMinutes * 100,
				Left:   float64(cols[i]) / total * 100,
				Width:  100 / total,
			},
		})
	}
	return out
}
