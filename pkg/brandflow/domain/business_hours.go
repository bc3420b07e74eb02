package domain

import "time"

// BusinessHours restricts how elapsed time is counted when evaluating
// timeouts. Hours outside the daily window, and whole days not listed in
// Days, do not count towards a timeout.
type BusinessHours struct {
	StartHour int            `json:"startHour"`
	EndHour   int            `json:"endHour"`
	Days      []time.Weekday `json:"days,omitempty"`
}

func (b *BusinessHours) includesDay(d time.Weekday) bool {
	if len(b.Days) == 0 {
		return d != time.Saturday && d != time.Sunday
	}
	for _, day := range b.Days {
		if day == d {
			return true
		}
	}
	return false
}

// Elapsed returns the amount of business time between from and to.
// Returns zero when to is not after from.
func (b *BusinessHours) Elapsed(from, to time.Time) time.Duration {
	if b == nil {
		return to.Sub(from)
	}
	if !to.After(from) {
		return 0
	}

	var total time.Duration
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for !day.After(to) {
		if b.includesDay(day.Weekday()) {
			open := day.Add(time.Duration(b.StartHour) * time.Hour)
			close := day.Add(time.Duration(b.EndHour) * time.Hour)
			start := open
			if from.After(start) {
				start = from
			}
			end := close
			if to.Before(end) {
				end = to
			}
			if end.After(start) {
				total += end.Sub(start)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}
