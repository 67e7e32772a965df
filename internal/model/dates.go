package model

import "time"

// DateFormat is the calendar-day layout used on the command line and in CSV files.
const DateFormat = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDay returns midnight UTC of the day after t's calendar day.
func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

// DateRange is an inclusive range of calendar days. Zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LineBounds converts the range into a LineFilter's From/Before bounds.
func (r DateRange) LineBounds() (from, before time.Time) {
	if !r.From.IsZero() {
		from = Day(r.From)
	}
	if !r.To.IsZero() {
		before = NextDay(r.To)
	}
	return from, before
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	from, before := r.LineBounds()
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !before.IsZero() && !t.Before(before) {
		return false
	}
	return true
}
