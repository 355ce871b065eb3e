// Package filter matches events against a user's discovery criteria.
package filter

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/clock"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/geo"
)

// Rejection names the first criterion an event failed. Accepted means it matched.
type Rejection string

const (
	Accepted             Rejection = ""
	RejectInactive       Rejection = "inactive"
	RejectPast           Rejection = "past"
	RejectGenre          Rejection = "genre"
	RejectLocation       Rejection = "location"
	RejectDate           Rejection = "date"
	RejectTimeOfDay      Rejection = "time_of_day"
	RejectAvailableSeats Rejection = "available_seats"
	RejectCapacity       Rejection = "capacity"
)

// Engine is stateless apart from its clock and calendar; safe for concurrent use.
type Engine struct {
	clock clock.Clock
	loc   *time.Location
}

// NewEngine builds an engine. loc is the calendar events are stored in and is
// used for minute-of-day; nil means UTC.
func NewEngine(c clock.Clock, loc *time.Location) *Engine {
	if c == nil {
		c = clock.NewSystem()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{clock: c, loc: loc}
}

// Apply returns the events matching c, preserving input order. A nil c returns
// events unchanged. "now" is read once per call.
func (e *Engine) Apply(events []domain.Event, c *domain.FilterCriteria) []domain.Event {
	if c == nil {
		return events
	}
	m := e.matcher(c)
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if m.check(ev) == Accepted {
			out = append(out, ev)
		}
	}
	return out
}

// Match evaluates a single event and reports the first failing criterion.
func (e *Engine) Match(ev domain.Event, c *domain.FilterCriteria) Rejection {
	if c == nil {
		return Accepted
	}
	return e.matcher(c).check(ev)
}

// MinutesFromMidnight returns the minute of day of an epoch-millis instant in loc.
func MinutesFromMidnight(epochMillis int64, loc *time.Location) int {
	t := time.UnixMilli(epochMillis).In(loc)
	return t.Hour()*60 + t.Minute()
}

type matcher struct {
	c      *domain.FilterCriteria
	nowMs  int64
	loc    *time.Location
	genres map[domain.Genre]struct{}
}

func (e *Engine) matcher(c *domain.FilterCriteria) matcher {
	m := matcher{c: c, nowMs: e.clock.Now().UnixMilli(), loc: e.loc}
	for _, g := range c.Genres {
		if known, ok := domain.ParseGenre(string(g)); ok {
			if m.genres == nil {
				m.genres = make(map[domain.Genre]struct{}, len(c.Genres))
			}
			m.genres[known] = struct{}{}
		}
	}
	return m
}

// check runs criteria in a fixed order and stops at the first failure.
func (m matcher) check(ev domain.Event) Rejection {
	c := m.c

	if !ev.Active {
		return RejectInactive
	}
	if ev.DateTime < m.nowMs {
		return RejectPast
	}

	if len(m.genres) > 0 && !m.hasGenre(ev.Genres) {
		return RejectGenre
	}

	// a radius without center never reaches here; construction rejects it
	if c.RadiusKm != nil && c.Center != nil {
		d := geo.DistanceKm(c.Center.Latitude, c.Center.Longitude, ev.Latitude, ev.Longitude)
		if d > *c.RadiusKm {
			return RejectLocation
		}
	}

	if c.Date.IsSet() {
		if ev.DateTime < *c.Date.Start || ev.DateTime > *c.Date.End {
			return RejectDate
		}
	}

	if c.TimeOfDay.IsSet() {
		if !c.TimeOfDay.Contains(MinutesFromMidnight(ev.DateTime, m.loc)) {
			return RejectTimeOfDay
		}
	}

	if !c.AvailableSeats.Contains(ev.AvailableSeats()) {
		return RejectAvailableSeats
	}

	if !c.Capacity.Contains(ev.MaxCapacity) {
		return RejectCapacity
	}

	return Accepted
}

func (m matcher) hasGenre(tokens []string) bool {
	for _, t := range tokens {
		g, ok := domain.ParseGenre(t)
		if !ok {
			continue
		}
		if _, want := m.genres[g]; want {
			return true
		}
	}
	return false
}
