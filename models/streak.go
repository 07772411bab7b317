package models

import "time"

// NextPrayerStreak computes the streak after an amen at now. It compares UTC
// calendar days: yesterday extends the streak, today leaves it as is
// (counted=false), anything else restarts it at 1.
func NextPrayerStreak(streak int, last *time.Time, now time.Time) (next int, counted bool) {
	if last == nil {
		return 1, true
	}
	days := calendarDays(*last, now)
	switch days {
	case 0:
		if streak < 1 {
			streak = 1
		}
		return streak, false
	case 1:
		return streak + 1, true
	default:
		return 1, true
	}
}

func calendarDays(from, to time.Time) int {
	f := from.UTC()
	t := to.UTC()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}
