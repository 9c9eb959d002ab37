package classifier

import (
	"time"

	"github.com/iliyamo/theatre-diary/internal/model"
)

// CalendarDay lists the plays on one day of a month view.
type CalendarDay struct {
	Date  string        `json:"date"`
	Plays []*model.Play `json:"plays"`
}

// MonthView returns the days of the given month that have at least one play,
// in ascending order.  Plays on the same day keep their input order.
func MonthView(plays []model.Play, year int, month time.Month) []CalendarDay {
	var byDay [32][]*model.Play
	for i := range plays {
		p := &plays[i]
		if !p.HasDate() {
			continue
		}
		y, m, d := p.Date.Date()
		if y == year && m == month {
			byDay[d] = append(byDay[d], p)
		}
	}

	days := []CalendarDay{}
	for d := 1; d < len(byDay); d++ {
		if len(byDay[d]) == 0 {
			continue
		}
		days = append(days, CalendarDay{
			Date:  time.Date(year, month, d, 0, 0, 0, 0, time.UTC).Format(model.DateLayout),
			Plays: byDay[d],
		})
	}
	return days
}
