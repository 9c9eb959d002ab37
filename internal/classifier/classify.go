// Package classifier turns a snapshot of plays into the views the diary
// shows: the home page buckets, the all-plays table and the calendar.
//
// Every function here is pure.  Results reference the caller's slice
// elements and never modify them, so concurrent calls over different (or the
// same, read-only) snapshots are safe.
package classifier

import (
	"slices"
	"time"

	"github.com/iliyamo/theatre-diary/internal/model"
)

// RecentLimit caps the Recently Seen bucket.
const RecentLimit = 6

// Buckets are the named, possibly overlapping, views of a play list.
type Buckets struct {
	Upcoming     []*model.Play `json:"upcoming"`
	RecentlySeen []*model.Play `json:"recently_seen"`
	Unrated      []*model.Play `json:"unrated"`
	HallOfFame   []*model.Play `json:"hall_of_fame"`
	HallOfShame  []*model.Play `json:"hall_of_shame"`
}

// Classify sorts plays into buckets relative to now.  Dates compare at day
// granularity: now is read in its own location, play dates in theirs.  Plays
// without a date only qualify for the rating-based buckets.
func Classify(plays []model.Play, now time.Time) Buckets {
	today := civil(now)
	b := Buckets{
		Upcoming:     []*model.Play{},
		RecentlySeen: []*model.Play{},
		Unrated:      []*model.Play{},
		HallOfFame:   []*model.Play{},
		HallOfShame:  []*model.Play{},
	}
	var seen []*model.Play

	for i := range plays {
		p := &plays[i]
		if p.HasDate() {
			if civil(p.Date).After(today) {
				b.Upcoming = append(b.Upcoming, p)
			} else {
				seen = append(seen, p)
				if !p.Rating.IsRated() {
					b.Unrated = append(b.Unrated, p)
				}
			}
		}
		if inFame(p.Rating) {
			b.HallOfFame = append(b.HallOfFame, p)
		}
		if inShame(p.Rating) {
			b.HallOfShame = append(b.HallOfShame, p)
		}
	}

	slices.SortStableFunc(b.Upcoming, byDateAsc)
	slices.SortStableFunc(seen, byDateDesc)
	slices.SortStableFunc(b.Unrated, byDateDesc)
	if len(seen) > RecentLimit {
		seen = seen[:RecentLimit]
	}
	if seen != nil {
		b.RecentlySeen = seen
	}

	slices.SortStableFunc(b.HallOfFame, func(a, c *model.Play) int {
		ao, co := a.Rating.IsStandingOvation(), c.Rating.IsStandingOvation()
		switch {
		case ao && co:
			return 0
		case ao:
			return -1
		case co:
			return 1
		}
		return c.Rating.Value - a.Rating.Value
	})
	slices.SortStableFunc(b.HallOfShame, func(a, c *model.Play) int {
		if d := a.Rating.Value - c.Rating.Value; d != 0 {
			return d
		}
		return byDateDesc(a, c)
	})
	return b
}

func inFame(r model.Rating) bool {
	return r.Kind == model.Ovation || (r.Kind == model.Numeric && r.Value >= 5)
}

func inShame(r model.Rating) bool {
	return r.Kind == model.Numeric && r.Value > 0 && r.Value <= 2
}

// civil drops the time of day, keeping the calendar date as seen in t's own
// location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// compareDates orders by calendar day; unknown dates sort before any real one.
func compareDates(a, c *model.Play) int {
	switch {
	case !a.HasDate() && !c.HasDate():
		return 0
	case !a.HasDate():
		return -1
	case !c.HasDate():
		return 1
	}
	return civil(a.Date).Compare(civil(c.Date))
}

func byDateAsc(a, c *model.Play) int  { return compareDates(a, c) }
func byDateDesc(a, c *model.Play) int { return compareDates(c, a) }
